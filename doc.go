/*
Package pipexec runs user-defined processing stages concurrently over
envelopes that flow through a fixed topology of nodes, growing and shrinking
each node's worker pool while it runs.

Topologies (pkg/pipeline):
  - Chain: a linear sequence of nodes fed from an input queue
  - Mesh: rows of nodes, each row ending in a shared output queue
  - Cube: a 3-D grid of columns along z
  - Distributor: round-robin feeding of mesh rows and cube columns

Stages (pkg/pipeline/stages):
  - Sleeper: simulated work
  - Backpressure: requests workers for the next node from queue depth
  - Throttle: caps a node's envelope rate across its workers
  - Indexer, Adder: small data stages

Supporting packages:
  - pkg/streaming/queue: bounded FIFO queue that can be closed
  - pkg/concurrency/semaphore: counting semaphore behind the queue
  - pkg/topology: address map with raster allocation
  - pkg/ratelimit/bucket: token bucket limiter behind Throttle
  - pkg/pipeline/monitor: cron-scheduled sampling, depth policy, Redis snapshots
  - pkg/metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/pipexec/pkg/pipeline"
		"github.com/vnykmshr/pipexec/pkg/pipeline/stages"
		"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	)

	in := queue.MustNew[*pipeline.Envelope[int]](64)
	out := queue.MustNew[*pipeline.Envelope[int]](64)

	chain, _ := pipeline.NewChain[int](stages.NewSleeper[int](), in, out, 2, "5ms")
	chain.AddStage(stages.NewBackpressure[int](), pipeline.NodeConfig{})
	chain.AddStage(stages.NewSleeper[int](), pipeline.NodeConfig{MaxInstances: 8, InitArg: "20ms"})
	chain.Run()
	defer func() { <-chain.Shutdown() }()

	in.Push(pipeline.NewEnvelope(42))
	env, _ := out.Pop()

The cmd/pipexec command builds and runs topologies described in YAML.
*/
package pipexec
