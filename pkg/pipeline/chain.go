package pipeline

import (
	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Chain is a linear topology. Each node hands envelopes to the node added
// after it; the last node writes to the output queue.
type Chain[T any] struct {
	*Engine[T]
	head *Node[T]
	tail *Node[T]
}

// NewChain creates a chain whose head runs stage and reads from in. The
// head starts with instances workers, each initialized with initArg.
func NewChain[T any](head Stage[T], in, out *queue.Queue[*Envelope[T]], instances int, initArg any) (*Chain[T], error) {
	return NewChainWithConfig(DefaultConfig(), head, in, out, instances, initArg)
}

// NewChainWithConfig is like NewChain with explicit engine settings.
func NewChainWithConfig[T any](config Config, head Stage[T], in, out *queue.Queue[*Envelope[T]], instances int, initArg any) (*Chain[T], error) {
	return NewChainWithHead(config, head, in, out, NodeConfig{Instances: instances, InitArg: initArg})
}

// NewChainWithHead creates a chain whose head node is described by
// headConfig. The head reads from in, so a non-zero QueueCapacity must
// match in's capacity.
func NewChainWithHead[T any](config Config, head Stage[T], in, out *queue.Queue[*Envelope[T]], headConfig NodeConfig) (*Chain[T], error) {
	if in == nil {
		return nil, errors.NewValidationError("pipeline", "input", nil, "cannot be nil").
			WithHint("the head node reads from the input queue")
	}
	if headConfig.QueueCapacity != 0 && headConfig.QueueCapacity != in.Cap() {
		return nil, errors.NewValidationError("pipeline", "QueueCapacity", headConfig.QueueCapacity, "differs from the input queue").
			WithHint("size the input queue instead")
	}

	topo, err := topology.NewMap[*Node[T]](1, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(config, topo, out)
	if err != nil {
		return nil, err
	}
	e.input = in

	c := &Chain[T]{Engine: e}
	e.nextHop = c.next

	n, err := e.bind(head, headConfig, in, nil)
	if err != nil {
		return nil, err
	}
	c.head, c.tail = n, n
	return c, nil
}

// AddStage appends a node running stage after the current last node. A
// zero QueueCapacity gives the node a queue as large as the chain input.
func (c *Chain[T]) AddStage(stage Stage[T], cfg NodeConfig) (*Node[T], error) {
	q, err := c.newQueue(cfg.QueueCapacity, c.input.Cap())
	if err != nil {
		return nil, err
	}

	n, err := c.bind(stage, cfg, q, nil)
	if err != nil {
		return nil, err
	}
	n.prev = c.tail.addr
	c.tail = n
	return n, nil
}

// Head returns the first node.
func (c *Chain[T]) Head() *Node[T] {
	return c.head
}

// Tail returns the last node.
func (c *Chain[T]) Tail() *Node[T] {
	return c.tail
}

func (c *Chain[T]) next(from topology.Address) (topology.Address, bool) {
	to := topology.Address{X: from.X + 1}
	if !c.topo.Exists(to) {
		return topology.Address{}, true
	}
	return to, false
}
