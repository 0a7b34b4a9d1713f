package stages

import (
	"fmt"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// IncrementKey is the envelope attribute that overrides an Adder's step.
const IncrementKey = "increment"

// Number is the set of payload types an Adder works on.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Adder adds a step to numeric payloads. The step comes from the init
// argument (default 1) and can be overridden per envelope under
// IncrementKey.
type Adder[N Number] struct {
	pipeline.BaseStage[N]
	step N
}

// NewAdder creates an Adder reading overrides from IncrementKey.
func NewAdder[N Number]() *Adder[N] {
	return &Adder[N]{BaseStage: pipeline.NewBaseStage[N](IncrementKey), step: 1}
}

// Init sets the step. arg may be an N, an int, or nil for 1.
func (a *Adder[N]) Init(arg any) error {
	switch v := arg.(type) {
	case nil:
		a.step = 1
	case N:
		a.step = v
	case int:
		a.step = N(v)
	default:
		return fmt.Errorf("stages: adder: unsupported init argument %T", arg)
	}
	return nil
}

// Run adds the step to the payload.
func (a *Adder[N]) Run(env *pipeline.Envelope[N]) error {
	step := a.step
	if override, ok := pipeline.AttributeAs[N](env, a.Key()); ok {
		step = override
	}
	env.SetPayload(env.Payload() + step)
	return nil
}

// Clone returns a fresh Adder with the same step.
func (a *Adder[N]) Clone() pipeline.Stage[N] {
	return &Adder[N]{BaseStage: a.BaseStage, step: a.step}
}
