package stages

import (
	"fmt"
	"sync"
	"time"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/ratelimit/bucket"
)

// ThrottleConfig sets the node-wide envelope rate.
type ThrottleConfig struct {
	// Rate is envelopes per second. Zero or negative means unlimited.
	Rate float64

	// Burst is how many envelopes may pass back to back. Defaults to 1.
	Burst int
}

// Clock drives the throttle's bucket and its waits.
type Clock interface {
	bucket.Clock
	Sleep(d time.Duration)
}

type systemClock struct {
	bucket.SystemClock
}

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Throttle delays envelopes so that the node, across all of its workers,
// passes at most Rate per second. Clones share one limiter, so scaling the
// node up adds concurrency but not throughput.
type Throttle[T any] struct {
	pipeline.BaseStage[T]
	shared *sharedLimiter
}

type sharedLimiter struct {
	once    sync.Once
	clock   Clock
	limiter bucket.Limiter
	err     error
}

// NewThrottle creates a throttle using the system clock.
func NewThrottle[T any]() *Throttle[T] {
	return NewThrottleWithClock[T](systemClock{})
}

// NewThrottleWithClock creates a throttle driven by clock.
func NewThrottleWithClock[T any](clock Clock) *Throttle[T] {
	return &Throttle[T]{
		BaseStage: pipeline.NewBaseStage[T](pipeline.NoKey),
		shared:    &sharedLimiter{clock: clock},
	}
}

// Init builds the shared limiter. arg may be a ThrottleConfig, a rate as
// float64 or int, or nil for unlimited. Only the first instance to
// initialize sets the rate; later instances share it.
func (t *Throttle[T]) Init(arg any) error {
	cfg := ThrottleConfig{Burst: 1}
	switch v := arg.(type) {
	case nil:
	case ThrottleConfig:
		cfg = v
	case float64:
		cfg.Rate = v
	case int:
		cfg.Rate = float64(v)
	default:
		return fmt.Errorf("stages: throttle: unsupported init argument %T", arg)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	s := t.shared
	s.once.Do(func() {
		rate := bucket.Inf
		if cfg.Rate > 0 {
			rate = bucket.Limit(cfg.Rate)
		}
		s.limiter, s.err = bucket.New(bucket.Config{Rate: rate, Burst: cfg.Burst, Clock: s.clock})
	})
	return s.err
}

// Run waits out the delay of a one-token reservation.
func (t *Throttle[T]) Run(*pipeline.Envelope[T]) error {
	if t.shared.limiter == nil {
		return fmt.Errorf("stages: throttle: not initialized")
	}
	if d := t.shared.limiter.Reserve().Delay(); d > 0 {
		t.shared.clock.Sleep(d)
	}
	return nil
}

// Rate returns the configured rate, zero when unlimited.
func (t *Throttle[T]) Rate() float64 {
	if t.shared.limiter == nil {
		return 0
	}
	if limit := t.shared.limiter.Limit(); limit != bucket.Inf {
		return float64(limit)
	}
	return 0
}

// Clone returns a throttle sharing this one's limiter.
func (t *Throttle[T]) Clone() pipeline.Stage[T] {
	return &Throttle[T]{BaseStage: t.BaseStage, shared: t.shared}
}
