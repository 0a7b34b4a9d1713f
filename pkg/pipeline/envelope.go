package pipeline

import (
	"github.com/google/uuid"

	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Attribute is one side-value carried by an envelope.
type Attribute struct {
	Key   string
	Value any
}

// Envelope carries a payload through the pipeline together with an ordered
// list of attributes. The engine never inspects the payload.
//
// An envelope is owned by one worker at a time; it must not be touched by
// the caller between pushing it into the pipeline and popping it from the
// output queue.
type Envelope[T any] struct {
	id      uuid.UUID
	payload T
	attrs   []Attribute
	node    *Node[T]
}

// NewEnvelope wraps payload in a fresh envelope.
func NewEnvelope[T any](payload T) *Envelope[T] {
	return &Envelope[T]{
		id:      uuid.New(),
		payload: payload,
	}
}

// ID returns the envelope's identifier, used to correlate log lines.
func (e *Envelope[T]) ID() uuid.UUID {
	return e.id
}

// Payload returns the wrapped value.
func (e *Envelope[T]) Payload() T {
	return e.payload
}

// SetPayload replaces the wrapped value.
func (e *Envelope[T]) SetPayload(payload T) {
	e.payload = payload
}

// Node returns the node that most recently accepted the envelope, or nil if
// it has not entered a pipeline yet.
func (e *Envelope[T]) Node() *Node[T] {
	return e.node
}

// Attribute returns the value of the first attribute named key.
func (e *Envelope[T]) Attribute(key string) (any, bool) {
	if i := e.index(key); i >= 0 {
		return e.attrs[i].Value, true
	}
	return nil, false
}

// HasAttribute reports whether an attribute named key is present.
func (e *Envelope[T]) HasAttribute(key string) bool {
	return e.index(key) >= 0
}

// SetAttribute adds key only if it is absent. It reports whether the value
// was stored.
func (e *Envelope[T]) SetAttribute(key string, value any) bool {
	if e.index(key) >= 0 {
		return false
	}
	e.attrs = append(e.attrs, Attribute{Key: key, Value: value})
	return true
}

// ReplaceAttribute overwrites the first attribute named key and returns its
// previous value. Nothing is added when key is absent.
func (e *Envelope[T]) ReplaceAttribute(key string, value any) (any, bool) {
	i := e.index(key)
	if i < 0 {
		return nil, false
	}
	old := e.attrs[i].Value
	e.attrs[i].Value = value
	return old, true
}

// PutAttribute replaces key if present and appends it otherwise.
func (e *Envelope[T]) PutAttribute(key string, value any) {
	if _, ok := e.ReplaceAttribute(key, value); !ok {
		e.attrs = append(e.attrs, Attribute{Key: key, Value: value})
	}
}

// AppendAttribute adds an attribute even if key is already present. Lookups
// keep returning the earlier value.
func (e *Envelope[T]) AppendAttribute(key string, value any) {
	e.attrs = append(e.attrs, Attribute{Key: key, Value: value})
}

// DeleteAttribute removes the first attribute named key.
func (e *Envelope[T]) DeleteAttribute(key string) bool {
	i := e.index(key)
	if i < 0 {
		return false
	}
	e.attrs = append(e.attrs[:i], e.attrs[i+1:]...)
	return true
}

// Attributes returns a copy of the attribute list in insertion order.
func (e *Envelope[T]) Attributes() []Attribute {
	out := make([]Attribute, len(e.attrs))
	copy(out, e.attrs)
	return out
}

// RouteTo asks the engine to deliver the envelope to addr after the current
// stage instead of the topology's default next hop.
func (e *Envelope[T]) RouteTo(addr topology.Address) {
	e.PutAttribute(AttrNextAddress, addr)
}

// RouteToName asks the engine to deliver the envelope to the node bound
// under name.
func (e *Envelope[T]) RouteToName(name string) {
	e.PutAttribute(AttrNextName, name)
}

// RouteToOutput sends the envelope straight to the pipeline output after
// the current stage.
func (e *Envelope[T]) RouteToOutput() {
	e.RouteToName(OutputName)
}

func (e *Envelope[T]) index(key string) int {
	for i := range e.attrs {
		if e.attrs[i].Key == key {
			return i
		}
	}
	return -1
}

// AttributeAs returns the attribute named key converted to V. The boolean is
// false when the key is absent or holds a value of another type.
func AttributeAs[V, T any](e *Envelope[T], key string) (V, bool) {
	var zero V
	raw, ok := e.Attribute(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}
