package pipeline

import (
	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Mesh is a 2-D grid of rows. Envelopes enter a row at (x, 0), move along
// y and leave the last column for the output queue.
type Mesh[T any] struct {
	*Engine[T]
	rows      int
	rowLength int
}

// NewMesh creates a rows x rowLength grid of pass-through nodes, each with a
// queue of queueCapacity. Bind real stages with AddStage.
func NewMesh[T any](rows, rowLength, queueCapacity int) (*Mesh[T], error) {
	return NewMeshWithConfig[T](DefaultConfig(), rows, rowLength, queueCapacity)
}

// NewMeshWithConfig is like NewMesh with explicit engine settings.
func NewMeshWithConfig[T any](config Config, rows, rowLength, queueCapacity int) (*Mesh[T], error) {
	if err := validation.ValidatePositive("pipeline", "rows", rows); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("pipeline", "rowLength", rowLength); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("pipeline", "queueCapacity", queueCapacity); err != nil {
		return nil, err
	}

	topo, err := topology.NewMap[*Node[T]](2, uint(rows), uint(rowLength), 0)
	if err != nil {
		return nil, err
	}
	out, err := queue.New[*Envelope[T]](queueCapacity * rows)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(config, topo, out)
	if err != nil {
		return nil, err
	}

	m := &Mesh[T]{Engine: e, rows: rows, rowLength: rowLength}
	e.nextHop = m.next

	for x := 0; x < rows; x++ {
		for y := 0; y < rowLength; y++ {
			q, err := queue.New[*Envelope[T]](queueCapacity)
			if err != nil {
				return nil, err
			}
			addr := topology.Address{X: uint(x), Y: uint(y)}
			n, err := e.bind(Passthrough[T]{}, NodeConfig{}, q, &addr)
			if err != nil {
				return nil, err
			}
			if y > 0 {
				n.prev = topology.Address{X: uint(x), Y: uint(y - 1)}
			}
		}
	}
	return m, nil
}

// AddStage binds stage at (x, y). Before Run the node takes every setting
// from cfg; once running, only the stage, its init argument and the scaling
// bounds change, and live workers swap to the new stage.
func (m *Mesh[T]) AddStage(stage Stage[T], x, y int, cfg NodeConfig) (*Node[T], error) {
	return configureNode(m.Engine, stage, topology.Address{X: uint(x), Y: uint(y)}, cfg)
}

// Entry returns the first node of row x.
func (m *Mesh[T]) Entry(x int) (*Node[T], error) {
	return m.Node(topology.Address{X: uint(x)})
}

// Entries returns the first node of every row.
func (m *Mesh[T]) Entries() []*Node[T] {
	entries := make([]*Node[T], 0, m.rows)
	for x := 0; x < m.rows; x++ {
		if n, err := m.Entry(x); err == nil {
			entries = append(entries, n)
		}
	}
	return entries
}

// Rows returns the number of rows.
func (m *Mesh[T]) Rows() int {
	return m.rows
}

// RowLength returns the number of nodes per row.
func (m *Mesh[T]) RowLength() int {
	return m.rowLength
}

func (m *Mesh[T]) next(from topology.Address) (topology.Address, bool) {
	if int(from.Y)+1 >= m.rowLength {
		return topology.Address{}, true
	}
	return topology.Address{X: from.X, Y: from.Y + 1}, false
}

// configureNode rebinds a pre-allocated grid node.
func configureNode[T any](e *Engine[T], stage Stage[T], addr topology.Address, cfg NodeConfig) (*Node[T], error) {
	if err := validation.ValidateNotNil("pipeline", "stage", stage); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n, err := e.Node(addr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		if err := n.SetInstanceBounds(cfg.MinInstances, cfg.MaxInstances); err != nil {
			return nil, err
		}
		if err := n.SetStage(stage, cfg.InitArg); err != nil {
			return nil, err
		}
		return n, nil
	}

	if cfg.Name != "" && cfg.Name != n.Name() {
		if err := e.topo.Alias(cfg.Name, addr); err != nil {
			return nil, err
		}
		n.name = cfg.Name
	}
	if cfg.QueueCapacity > 0 && cfg.QueueCapacity != n.queue.Cap() {
		q, err := queue.New[*Envelope[T]](cfg.QueueCapacity)
		if err != nil {
			return nil, err
		}
		n.queue = q
	}

	n.ctlMu.Lock()
	n.current = cfg.instances()
	n.min, n.max = cfg.MinInstances, cfg.MaxInstances
	n.ctlMu.Unlock()

	n.stageMu.Lock()
	n.stage, n.initArg = stage, cfg.InitArg
	n.stageMu.Unlock()
	return n, nil
}
