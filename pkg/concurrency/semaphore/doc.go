/*
Package semaphore provides a counting semaphore built on a mutex and a
condition variable.

Wait blocks until the count is positive and then decrements it; Signal
increments the count and wakes one waiter. The semaphore carries no timeout
or cancellation: callers needing bounded waiting poll with TryWait. Close
wakes every waiter so that blocked goroutines can observe shutdown.

# Quick Start

	sem := semaphore.New(2)

	if err := sem.Wait(); err != nil {
		return err // semaphore closed
	}
	defer sem.Signal()

The bounded queue in pkg/streaming/queue uses two semaphores, one counting
free slots and one counting occupied slots.
*/
package semaphore
