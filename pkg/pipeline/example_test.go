package pipeline_test

import (
	"fmt"
	"strings"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
)

func ExampleNewChain() {
	in := queue.MustNew[*pipeline.Envelope[string]](4)
	out := queue.MustNew[*pipeline.Envelope[string]](4)

	trim := pipeline.StageFunc[string](func(env *pipeline.Envelope[string]) error {
		env.SetPayload(strings.TrimSpace(env.Payload()))
		return nil
	})
	upper := pipeline.StageFunc[string](func(env *pipeline.Envelope[string]) error {
		env.SetPayload(strings.ToUpper(env.Payload()))
		return nil
	})

	chain, err := pipeline.NewChain[string](trim, in, out, 1, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	if _, err := chain.AddStage(upper, pipeline.NodeConfig{}); err != nil {
		fmt.Println(err)
		return
	}

	nodes, _ := chain.Run()
	fmt.Println("nodes:", nodes)

	_ = in.Push(pipeline.NewEnvelope("  hello  "))
	env, _ := out.Pop()
	fmt.Println(env.Payload())

	<-chain.Shutdown()

	// Output:
	// nodes: 2
	// HELLO
}

func ExampleEnvelope_RouteToOutput() {
	in := queue.MustNew[*pipeline.Envelope[int]](2)
	out := queue.MustNew[*pipeline.Envelope[int]](2)

	shortcut := pipeline.StageFunc[int](func(env *pipeline.Envelope[int]) error {
		if env.Payload() < 0 {
			env.RouteToOutput()
		}
		return nil
	})
	double := pipeline.StageFunc[int](func(env *pipeline.Envelope[int]) error {
		env.SetPayload(env.Payload() * 2)
		return nil
	})

	chain, _ := pipeline.NewChain[int](shortcut, in, out, 1, nil)
	_, _ = chain.AddStage(double, pipeline.NodeConfig{})
	_, _ = chain.Run()

	_ = in.Push(pipeline.NewEnvelope(-3))
	env, _ := out.Pop()
	fmt.Println(env.Payload())

	_ = in.Push(pipeline.NewEnvelope(3))
	env, _ = out.Pop()
	fmt.Println(env.Payload())

	<-chain.Shutdown()

	// Output:
	// -3
	// 6
}
