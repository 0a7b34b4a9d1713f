package stages

import (
	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// Attribute keys used by Indexer.
const (
	IDKey    = "id"
	IndexKey = "index"
)

// Indexer numbers envelopes that share an id: the first envelope with a
// given IDKey value gets index 0, the next one 1, and so on. The counts live
// in the instance, so an Indexer cannot be cloned.
type Indexer[T any] struct {
	pipeline.BaseStage[T]
	counts  map[any]int
	skipped int
}

// NewIndexer creates an Indexer reading IDKey.
func NewIndexer[T any]() *Indexer[T] {
	return &Indexer[T]{BaseStage: pipeline.NewBaseStage[T](IDKey)}
}

// Init resets the counts.
func (ix *Indexer[T]) Init(any) error {
	ix.counts = make(map[any]int)
	ix.skipped = 0
	return nil
}

// Run stores the occurrence index of the envelope's id under IndexKey.
// Envelopes without an id, or with an id that cannot be a map key, pass
// through untouched.
func (ix *Indexer[T]) Run(env *pipeline.Envelope[T]) error {
	id, ok := env.Attribute(ix.Key())
	if !ok || !hashable(id) {
		ix.skipped++
		return nil
	}

	n, seen := ix.counts[id]
	if seen {
		n++
	}
	ix.counts[id] = n
	env.PutAttribute(IndexKey, n)
	return nil
}

// End drops the counts.
func (ix *Indexer[T]) End(*pipeline.Envelope[T]) error {
	ix.counts = nil
	return nil
}

// Skipped returns how many envelopes had no usable id.
func (ix *Indexer[T]) Skipped() int {
	return ix.skipped
}

func hashable(v any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[any]struct{}{v: {}}
	return true
}
