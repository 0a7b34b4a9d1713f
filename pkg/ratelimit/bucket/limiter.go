package bucket

import (
	"math"
	"sync"
	"time"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

// Limit is a rate in events per second. A zero Limit allows only the
// initial burst. Use Inf for no limit.
type Limit float64

// Inf is the infinite rate limit; it allows all events.
var Inf = Limit(math.Inf(1))

// Limiter hands out reservations against a token bucket. One Limiter may be
// shared by any number of goroutines.
type Limiter interface {
	// Reserve reserves one token. The reservation's Delay is how long the
	// caller must wait before acting.
	Reserve() *Reservation

	// ReserveN reserves n tokens.
	ReserveN(n int) *Reservation

	// Limit returns the current rate limit.
	Limit() Limit

	// Burst returns the bucket capacity.
	Burst() int
}

// Reservation records when a reserved event may happen.
type Reservation struct {
	ok        bool
	timeToAct time.Time
	clock     Clock
}

// OK reports whether the reservation can ever be honored.
func (r *Reservation) OK() bool {
	return r.ok
}

// Delay returns the time until the reservation may act, measured on the
// limiter's clock. It is zero for reservations that are not OK.
func (r *Reservation) Delay() time.Duration {
	if !r.ok {
		return 0
	}
	if delay := r.timeToAct.Sub(r.clock.Now()); delay > 0 {
		return delay
	}
	return 0
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the number of tokens added per second.
	Rate Limit

	// Burst is the maximum number of tokens that can be stored.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock
}

type tokenBucket struct {
	mu         sync.Mutex
	limit      Limit
	burst      int
	tokens     float64
	lastUpdate time.Time
	clock      Clock
}

// New creates a limiter that starts with a full bucket.
func New(config Config) (Limiter, error) {
	if config.Rate < 0 {
		return nil, errors.NewValidationError("bucket", "rate", config.Rate, "rate cannot be negative").
			WithHint("use bucket.Inf for no rate limit")
	}
	if config.Burst <= 0 {
		return nil, errors.NewValidationError("bucket", "burst", config.Burst, "burst must be positive").
			WithHint("burst determines how many tokens can be consumed back to back")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	return &tokenBucket{
		limit:      config.Rate,
		burst:      config.Burst,
		tokens:     float64(config.Burst),
		lastUpdate: config.Clock.Now(),
		clock:      config.Clock,
	}, nil
}
