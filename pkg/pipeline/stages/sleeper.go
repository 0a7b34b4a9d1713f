package stages

import (
	"fmt"
	"time"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// SleepKey is the envelope attribute that overrides a Sleeper's duration.
const SleepKey = "sleep"

// Sleeper blocks for a fixed duration per envelope. The duration comes from
// the init argument and can be overridden per envelope with a
// time.Duration stored under SleepKey.
type Sleeper[T any] struct {
	pipeline.BaseStage[T]
	d time.Duration
}

// NewSleeper creates a Sleeper reading overrides from SleepKey.
func NewSleeper[T any]() *Sleeper[T] {
	return &Sleeper[T]{BaseStage: pipeline.NewBaseStage[T](SleepKey)}
}

// Init sets the default duration. arg may be a time.Duration, a duration
// string such as "250ms", an int number of milliseconds, or nil for none.
func (s *Sleeper[T]) Init(arg any) error {
	d, err := ParseDuration(arg)
	if err != nil {
		return err
	}
	s.d = d
	return nil
}

// Run sleeps for the envelope's override or the default duration.
func (s *Sleeper[T]) Run(env *pipeline.Envelope[T]) error {
	d := s.d
	if override, ok := pipeline.AttributeAs[time.Duration](env, s.Key()); ok && override > 0 {
		d = override
	}
	if d > 0 {
		time.Sleep(d)
	}
	return nil
}

// Duration returns the default duration set by Init.
func (s *Sleeper[T]) Duration() time.Duration {
	return s.d
}

// Clone returns a fresh Sleeper with the same key.
func (s *Sleeper[T]) Clone() pipeline.Stage[T] {
	return &Sleeper[T]{BaseStage: s.BaseStage}
}

// ParseDuration converts a stage init argument into a duration.
func ParseDuration(arg any) (time.Duration, error) {
	switch v := arg.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case string:
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("stages: cannot use %T as a duration", arg)
	}
}
