/*
Package queue provides a fixed-capacity, thread-safe circular queue.

Capacity is enforced by two counting semaphores: one counts free slots and
gates Push, the other counts occupied slots and gates Pop. Concurrent pushers
serialize on a push lock and concurrent poppers on a pop lock, so a producer
and a consumer never contend with each other.

# Quick Start

	q, err := queue.New[*Job](64)
	if err != nil {
		return err
	}

	_ = q.Push(job)     // blocks while the queue is full
	next, err := q.Pop() // blocks while the queue is empty

# Non-blocking Pop

TryPop returns immediately when no item is ready. A false result means
"probably empty": a concurrent Push may land right after the check, so
callers retry or fall back to Pop instead of treating one miss as proof of
emptiness.

# Closing

Close makes Push fail with ErrClosed and lets Pop drain the remaining items
before it also fails with ErrClosed. Goroutines blocked in Push or Pop wake
up on Close.

# Drain Detection

Len reports the live fill count and Cap the capacity. WaitFinish blocks until
at least one item is available without consuming it, which lets a driver
wait for results to come back without racing the consumers.
*/
package queue
