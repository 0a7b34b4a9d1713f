/*
Package pipeline runs a graph of stages, each backed by an elastic pool of
worker goroutines, connected by bounded queues.

# Building a topology

Three builders share one engine and differ in shape and default routing:

  - Chain: nodes in a line; each hands envelopes to the next, the last one
    writes to the output queue.
  - Mesh: a rows x rowLength grid; envelopes move along y.
  - Cube: a width x height x depth grid; envelopes move along z.

Mesh and Cube start with every position filled by Passthrough; AddStage
binds real stages.

	in, _ := queue.New[*pipeline.Envelope[Order]](64)
	out, _ := queue.New[*pipeline.Envelope[Order]](64)

	chain, err := pipeline.NewChain[Order](decode, in, out, 2, nil)
	if err != nil {
		return err
	}
	chain.AddStage(enrich, pipeline.NodeConfig{Instances: 4, MaxInstances: 16})
	chain.AddStage(store, pipeline.NodeConfig{})

	if _, err := chain.Run(); err != nil {
		return err
	}
	defer func() { <-chain.Shutdown() }()

	in.Push(pipeline.NewEnvelope(order))
	done, _ := out.Pop()

# Routing

After a stage runs, the envelope goes to the node named by AttrNextName (or
to the output when the name is OutputName), else to the address in
AttrNextAddress, else to the topology's default next hop. The routing
attributes are consumed on use. An explicit target that does not exist is
dropped and reported on Errors.

# Elastic scaling

Each node has a mailbox of Commands. A command pushed on node P is acted on
by the workers of P's successor, the next time one of them dequeues an
envelope: ScaleUp clones the stage into a new worker while the pool is
below MaxInstances, ScaleDown retires the worker that read it while the pool
is above MinInstances and more than one worker remains. A stage whose Clone
returns nil cannot be scaled; the attempt is reported as a ScaleError
wrapping ErrCloneDisallowed.

# Failures

Errors and panics from Init, Run and End are caught per worker, logged,
and sent to Errors as a *StageError. Only the failing worker exits.
*/
package pipeline
