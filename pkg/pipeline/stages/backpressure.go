package stages

import (
	"fmt"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// BackpressureConfig sets when a Backpressure stage asks for more or fewer
// workers downstream.
type BackpressureConfig struct {
	// High is the input queue depth at which ScaleUp is requested.
	High int

	// Low is the depth at or below which ScaleDown is requested when
	// Adaptive is set.
	Low int

	// Adaptive enables ScaleDown requests.
	Adaptive bool
}

// DefaultBackpressureConfig requests a worker whenever anything is waiting
// and never shrinks the pool.
func DefaultBackpressureConfig() BackpressureConfig {
	return BackpressureConfig{High: 1}
}

// Backpressure watches the input queue of the node it runs on and leaves
// scaling commands in that node's mailbox, where the successor's workers
// pick them up. On a node without a successor it only consumes envelopes.
// An envelope carrying a Command, or a command name such as "scale_up",
// under pipeline.AttrNodeControl forces that command instead.
type Backpressure[T any] struct {
	pipeline.BaseStage[T]
	config BackpressureConfig
}

// NewBackpressure creates a monitor stage.
func NewBackpressure[T any]() *Backpressure[T] {
	return &Backpressure[T]{
		BaseStage: pipeline.NewBaseStage[T](pipeline.AttrNodeControl),
		config:    DefaultBackpressureConfig(),
	}
}

// Init accepts a BackpressureConfig, a bool enabling adaptive mode, or nil
// for the defaults.
func (b *Backpressure[T]) Init(arg any) error {
	cfg := DefaultBackpressureConfig()
	switch v := arg.(type) {
	case nil:
	case BackpressureConfig:
		cfg = v
	case *BackpressureConfig:
		if v != nil {
			cfg = *v
		}
	case bool:
		cfg.Adaptive = v
	default:
		return fmt.Errorf("stages: backpressure: unsupported init argument %T", arg)
	}
	if cfg.High < 1 {
		cfg.High = 1
	}
	if cfg.Low >= cfg.High {
		return fmt.Errorf("stages: backpressure: low watermark %d must be below high %d", cfg.Low, cfg.High)
	}
	b.config = cfg
	return nil
}

// Run decides on a command for the current envelope.
func (b *Backpressure[T]) Run(env *pipeline.Envelope[T]) error {
	node := env.Node()
	if node == nil {
		return fmt.Errorf("stages: backpressure: envelope %s has no node", env.ID())
	}

	cmd := b.Decide(node.Queue().Len())
	if forced, ok := env.Attribute(b.Key()); ok {
		env.DeleteAttribute(b.Key())
		c, err := forcedCommand(forced)
		if err != nil {
			return fmt.Errorf("stages: backpressure: envelope %s: %w", env.ID(), err)
		}
		cmd = c
	}
	if cmd != pipeline.NoOp && node.HasSuccessor() {
		node.PushCommand(cmd)
	}
	return nil
}

func forcedCommand(v any) (pipeline.Command, error) {
	switch c := v.(type) {
	case pipeline.Command:
		return c, nil
	case string:
		return pipeline.ParseCommand(c)
	default:
		return pipeline.NoOp, fmt.Errorf("unsupported control value %T", v)
	}
}

// Decide maps a queue depth to a command.
func (b *Backpressure[T]) Decide(depth int) pipeline.Command {
	switch {
	case depth >= b.config.High:
		return pipeline.ScaleUp
	case b.config.Adaptive && depth <= b.config.Low:
		return pipeline.ScaleDown
	default:
		return pipeline.NoOp
	}
}

// Clone returns a monitor with the same configuration.
func (b *Backpressure[T]) Clone() pipeline.Stage[T] {
	return &Backpressure[T]{BaseStage: b.BaseStage, config: b.config}
}
