package queue

import (
	"sync"
	"sync/atomic"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/concurrency/semaphore"
)

// Queue is a bounded FIFO queue of T.
type Queue[T any] struct {
	buffer []T
	head   int
	tail   int
	count  atomic.Int64

	freeSlots *semaphore.Semaphore
	usedSlots *semaphore.Semaphore

	pushMu sync.Mutex
	popMu  sync.Mutex

	closed atomic.Bool
}

// New creates a queue with the given capacity. Capacity must be at least 1.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, errors.NewValidationError("queue", "capacity", capacity, "must be positive").
			WithHint("capacity is the number of items the queue holds before Push blocks")
	}

	return &Queue[T]{
		buffer:    make([]T, capacity),
		freeSlots: semaphore.New(capacity),
		usedSlots: semaphore.New(0),
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int) *Queue[T] {
	q, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return q
}

// Push appends item at the tail, blocking while the queue is full.
// It only fails once the queue is closed.
func (q *Queue[T]) Push(item T) error {
	if q.closed.Load() {
		return errors.ErrClosed
	}
	if err := q.freeSlots.Wait(); err != nil {
		return err
	}

	q.pushMu.Lock()
	if q.closed.Load() {
		q.pushMu.Unlock()
		q.freeSlots.Signal()
		return errors.ErrClosed
	}
	q.buffer[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buffer)
	q.count.Add(1)
	q.usedSlots.Signal()
	q.pushMu.Unlock()

	return nil
}

// Pop removes and returns the item at the head, blocking while the queue is
// empty. After Close it keeps returning buffered items, then ErrClosed.
func (q *Queue[T]) Pop() (T, error) {
	if err := q.usedSlots.Wait(); err != nil {
		var zero T
		return zero, err
	}
	return q.take(), nil
}

// TryPop removes the head item if one is ready. The boolean is false when
// the queue looked empty; this is a hint, not a guarantee.
func (q *Queue[T]) TryPop() (T, bool, error) {
	var zero T
	if !q.usedSlots.TryWait() {
		if q.closed.Load() {
			return zero, false, errors.ErrClosed
		}
		return zero, false, nil
	}
	return q.take(), true, nil
}

// take reads the head slot. The caller must own one occupied-slot permit.
func (q *Queue[T]) take() T {
	var zero T

	q.popMu.Lock()
	item := q.buffer[q.head]
	q.buffer[q.head] = zero
	q.head = (q.head + 1) % len(q.buffer)
	q.count.Add(-1)
	q.freeSlots.Signal()
	q.popMu.Unlock()

	return item
}

// WaitFinish blocks until at least one item is available, without removing
// it. It returns ErrClosed if the queue is closed and empty.
func (q *Queue[T]) WaitFinish() error {
	if err := q.usedSlots.Wait(); err != nil {
		return err
	}
	q.usedSlots.Signal()
	return nil
}

// Close stops accepting items and wakes blocked callers. It is idempotent.
func (q *Queue[T]) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.freeSlots.Close()
	q.usedSlots.Close()
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	return int(q.count.Load())
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buffer)
}
