package topology

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

// Ranges bounds each dimension: valid coordinates are [0, range). A zero
// range leaves that dimension unbounded when it is in use.
type Ranges struct {
	X uint
	Y uint
	Z uint
}

// Map binds addresses and names to handles of type H.
type Map[H any] struct {
	mu     sync.RWMutex
	dims   int
	ranges Ranges
	nodes  map[Address]H
	names  map[string][]Address
	cursor Address
}

// NewMap creates a map over a space of dims dimensions. Dimensions beyond
// the first two may be left unbounded, but a 2-D or 3-D space needs both x
// and y ranges so that raster allocation can wrap.
func NewMap[H any](dims int, xRange, yRange, zRange uint) (*Map[H], error) {
	if dims < 1 || dims > 3 {
		return nil, errors.NewValidationError("topology", "dims", dims, "must be between 1 and 3")
	}
	if dims > 1 && (xRange == 0 || yRange == 0) {
		return nil, fmt.Errorf("topology: %d-D map needs x and y ranges, got %d and %d: %w",
			dims, xRange, yRange, errors.ErrAddressOutOfRange)
	}

	r := Ranges{X: xRange}
	if dims > 1 {
		r.Y = yRange
	}
	if dims > 2 {
		r.Z = zRange
	}

	return &Map[H]{
		dims:   dims,
		ranges: r,
		nodes:  make(map[Address]H),
		names:  make(map[string][]Address),
	}, nil
}

// Dims returns the number of dimensions in use.
func (m *Map[H]) Dims() int {
	return m.dims
}

// Ranges returns the configured per-dimension bounds.
func (m *Map[H]) Ranges() Ranges {
	return m.ranges
}

// Add binds handle at the next free address in raster order. An empty name
// defaults to the address string.
func (m *Map[H]) Add(handle H, name string) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if !m.inRange(m.cursor) {
			return Address{}, fmt.Errorf("topology: no free address left: %w", errors.ErrAddressOutOfRange)
		}
		if _, taken := m.nodes[m.cursor]; !taken {
			break
		}
		m.cursor = m.advance(m.cursor)
	}

	addr := m.cursor
	m.bind(handle, name, addr)
	m.cursor = m.advance(addr)
	return addr, nil
}

// AddAt binds handle at addr. It fails with ErrAddressOutOfRange when addr
// lies outside the configured space and with ErrAddressInUse when addr is
// already bound.
func (m *Map[H]) AddAt(handle H, name string, addr Address) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inRange(addr) {
		return Address{}, fmt.Errorf("topology: %s: %w", addr, errors.ErrAddressOutOfRange)
	}
	if _, taken := m.nodes[addr]; taken {
		return Address{}, fmt.Errorf("topology: %s: %w", addr, errors.ErrAddressInUse)
	}

	m.bind(handle, name, addr)
	return addr, nil
}

func (m *Map[H]) bind(handle H, name string, addr Address) {
	if name == "" {
		name = addr.String()
	}
	m.nodes[addr] = handle
	m.names[name] = append(m.names[name], addr)
}

// Alias registers an extra name for the already bound addr.
func (m *Map[H]) Alias(name string, addr Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[addr]; !ok {
		return fmt.Errorf("topology: %s: %w", addr, errors.ErrNodeNotFound)
	}
	m.names[name] = append(m.names[name], addr)
	return nil
}

// Get returns the handle bound at addr.
func (m *Map[H]) Get(addr Address) (H, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.nodes[addr]
	if !ok {
		return h, fmt.Errorf("topology: %s: %w", addr, errors.ErrNodeNotFound)
	}
	return h, nil
}

// GetByName returns the handle of the first address bound under name.
func (m *Map[H]) GetByName(name string) (H, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero H
	addrs := m.names[name]
	if len(addrs) == 0 {
		return zero, fmt.Errorf("topology: name %q: %w", name, errors.ErrNodeNotFound)
	}
	return m.nodes[addrs[0]], nil
}

// Exists reports whether addr is bound.
func (m *Map[H]) Exists(addr Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[addr]
	return ok
}

// NameExists reports whether any address is bound under name.
func (m *Map[H]) NameExists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names[name]) > 0
}

// Named returns every address bound under name, in binding order.
func (m *Map[H]) Named(name string) []Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.names[name])
}

// Addresses returns all bound addresses in ascending order.
func (m *Map[H]) Addresses() []Address {
	m.mu.RLock()
	addrs := lo.Keys(m.nodes)
	m.mu.RUnlock()

	slices.SortFunc(addrs, Address.Compare)
	return addrs
}

// Handles returns all handles ordered by address.
func (m *Map[H]) Handles() []H {
	addrs := m.Addresses()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Map(addrs, func(a Address, _ int) H { return m.nodes[a] })
}

// Len returns the number of bound addresses.
func (m *Map[H]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

func (m *Map[H]) inRange(a Address) bool {
	if m.dims < 2 && a.Y != 0 {
		return false
	}
	if m.dims < 3 && a.Z != 0 {
		return false
	}
	if m.ranges.X > 0 && a.X >= m.ranges.X {
		return false
	}
	if m.ranges.Y > 0 && a.Y >= m.ranges.Y {
		return false
	}
	if m.ranges.Z > 0 && a.Z >= m.ranges.Z {
		return false
	}
	return true
}

// advance steps a in raster order. Once the space is exhausted the result
// falls outside it, which Add reports as out of range.
func (m *Map[H]) advance(a Address) Address {
	a.X++
	if m.dims == 1 || a.X < m.ranges.X {
		return a
	}
	a.X = 0
	a.Y++
	if a.Y < m.ranges.Y {
		return a
	}
	if m.dims == 2 {
		// Leave y past the range so inRange rejects it.
		return a
	}
	a.Y = 0
	a.Z++
	return a
}
