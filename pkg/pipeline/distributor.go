package pipeline

import (
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

// Distributor feeds envelopes into several entry nodes in round-robin
// order, e.g. the rows of a Mesh or the columns of a Cube.
type Distributor[T any] struct {
	entries []*Node[T]
	next    atomic.Uint64
}

// NewDistributor creates a distributor over entries.
func NewDistributor[T any](entries []*Node[T]) (*Distributor[T], error) {
	entries = lo.Compact(entries)
	if len(entries) == 0 {
		return nil, errors.NewValidationError("pipeline", "entries", 0, "must contain at least one node")
	}
	return &Distributor[T]{entries: entries}, nil
}

// Push hands env to the next entry node, blocking while its queue is full.
func (d *Distributor[T]) Push(env *Envelope[T]) error {
	i := (d.next.Add(1) - 1) % uint64(len(d.entries))
	return d.entries[i].queue.Push(env)
}

// PushAll pushes every envelope in order and stops at the first error.
func (d *Distributor[T]) PushAll(envs ...*Envelope[T]) error {
	for _, env := range envs {
		if err := d.Push(env); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the nodes fed by the distributor.
func (d *Distributor[T]) Entries() []*Node[T] {
	return append([]*Node[T](nil), d.entries...)
}
