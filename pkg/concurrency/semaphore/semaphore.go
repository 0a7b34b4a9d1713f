package semaphore

import (
	"sync"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

// Semaphore is a counting semaphore.
type Semaphore struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	closed bool
}

// NewSafe creates a semaphore with the given initial count, returning a
// ValidationError for negative counts.
func NewSafe(initial int) (*Semaphore, error) {
	if initial < 0 {
		return nil, errors.NewValidationError("semaphore", "initial", initial, "cannot be negative").
			WithHint("the initial count is the number of Wait calls that succeed without a Signal")
	}
	s := &Semaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// New creates a semaphore with the given initial count.
// It panics if initial is negative; use NewSafe to get an error instead.
func New(initial int) *Semaphore {
	s, err := NewSafe(initial)
	if err != nil {
		panic(err)
	}
	return s
}

// Wait blocks until the count is greater than zero, then decrements it.
// Once the semaphore is closed, Wait still consumes remaining permits but
// returns ErrClosed instead of blocking on an empty count.
func (s *Semaphore) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.count == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.count == 0 {
		return errors.ErrClosed
	}
	s.count--
	return nil
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Signal increments the count and wakes one waiter.
func (s *Semaphore) Signal() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// Close wakes all waiters. Waiting on an empty closed semaphore fails with
// ErrClosed. Close is idempotent.
func (s *Semaphore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Count returns the current count.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// IsClosed reports whether Close has been called.
func (s *Semaphore) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
