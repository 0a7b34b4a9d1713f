package pipeline

// Reserved attribute keys. They form the contract between stages and the
// router; user attributes should avoid the "pipeline." prefix.
const (
	// AttrNextAddress holds a topology.Address overriding the next hop.
	AttrNextAddress = "pipeline.next_address"
	// AttrNextName holds a node name overriding the next hop.
	AttrNextName = "pipeline.next_name"
	// AttrNodeControl holds a Command for the monitoring stage of a node.
	AttrNodeControl = "pipeline.node_control"

	// OutputName is the AttrNextName value that routes to the pipeline output.
	OutputName = "pipeline.output"
)

// NoKey is the key of a stage that owns no envelope attribute.
const NoKey = ""

// Stage is the processing logic run by every worker instance of a node.
//
// Init is called once per instance before its first envelope with the
// node's init argument. Run processes one envelope in place. End releases
// the instance; it is called once at shutdown, scale-down or hot-swap, with
// a nil envelope. Clone returns an independent instance for a new worker, or
// nil when the stage must not be replicated. Clone may run concurrently with
// Run on the instance being cloned.
type Stage[T any] interface {
	Init(arg any) error
	Run(env *Envelope[T]) error
	End(env *Envelope[T]) error
	Clone() Stage[T]
}

// Keyed is implemented by stages that read a private envelope attribute,
// letting one stage template be parameterized per envelope.
type Keyed interface {
	Key() string
}

// BaseStage provides no-op Init and End, a disallowed Clone and an
// attribute key. Embed it and implement Run.
type BaseStage[T any] struct {
	key string
}

// NewBaseStage returns a BaseStage owning key.
func NewBaseStage[T any](key string) BaseStage[T] {
	return BaseStage[T]{key: key}
}

// Init does nothing.
func (BaseStage[T]) Init(any) error { return nil }

// End does nothing.
func (BaseStage[T]) End(*Envelope[T]) error { return nil }

// Clone disallows cloning.
func (BaseStage[T]) Clone() Stage[T] { return nil }

// Key returns the attribute key owned by the stage.
func (b BaseStage[T]) Key() string { return b.key }

// StageFunc adapts a function to the Stage interface. Instances share the
// function, so it must be safe for concurrent use.
type StageFunc[T any] func(env *Envelope[T]) error

// Init does nothing.
func (f StageFunc[T]) Init(any) error { return nil }

// Run calls f.
func (f StageFunc[T]) Run(env *Envelope[T]) error { return f(env) }

// End does nothing.
func (f StageFunc[T]) End(*Envelope[T]) error { return nil }

// Clone returns f itself.
func (f StageFunc[T]) Clone() Stage[T] { return f }

// Passthrough forwards envelopes untouched. Mesh and cube grids are filled
// with it until a real stage is bound.
type Passthrough[T any] struct{}

// Init does nothing.
func (Passthrough[T]) Init(any) error { return nil }

// Run does nothing.
func (Passthrough[T]) Run(*Envelope[T]) error { return nil }

// End does nothing.
func (Passthrough[T]) End(*Envelope[T]) error { return nil }

// Clone returns a new Passthrough.
func (Passthrough[T]) Clone() Stage[T] { return Passthrough[T]{} }
