package pipeline

import (
	"github.com/samber/lo"

	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Cube is a 3-D grid of columns. Envelopes enter a column at (x, y, 0), move
// along z and leave the last layer for the output queue.
type Cube[T any] struct {
	*Engine[T]
	width  int
	height int
	depth  int
}

// NewCube creates a width x height x depth grid of pass-through nodes, each
// with a queue of queueCapacity.
func NewCube[T any](width, height, depth, queueCapacity int) (*Cube[T], error) {
	return NewCubeWithConfig[T](DefaultConfig(), width, height, depth, queueCapacity)
}

// NewCubeWithConfig is like NewCube with explicit engine settings.
func NewCubeWithConfig[T any](config Config, width, height, depth, queueCapacity int) (*Cube[T], error) {
	for field, v := range map[string]int{
		"width":         width,
		"height":        height,
		"depth":         depth,
		"queueCapacity": queueCapacity,
	} {
		if err := validation.ValidatePositive("pipeline", field, v); err != nil {
			return nil, err
		}
	}

	topo, err := topology.NewMap[*Node[T]](3, uint(width), uint(height), uint(depth))
	if err != nil {
		return nil, err
	}
	out, err := queue.New[*Envelope[T]](queueCapacity * width * height)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(config, topo, out)
	if err != nil {
		return nil, err
	}

	c := &Cube[T]{Engine: e, width: width, height: height, depth: depth}
	e.nextHop = c.next

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				q, err := queue.New[*Envelope[T]](queueCapacity)
				if err != nil {
					return nil, err
				}
				addr := topology.Address{X: uint(x), Y: uint(y), Z: uint(z)}
				n, err := e.bind(Passthrough[T]{}, NodeConfig{}, q, &addr)
				if err != nil {
					return nil, err
				}
				if z > 0 {
					n.prev = topology.Address{X: uint(x), Y: uint(y), Z: uint(z - 1)}
				}
			}
		}
	}
	return c, nil
}

// AddStage binds stage at (x, y, z), with the same rules as Mesh.AddStage.
func (c *Cube[T]) AddStage(stage Stage[T], x, y, z int, cfg NodeConfig) (*Node[T], error) {
	return configureNode(c.Engine, stage, topology.Address{X: uint(x), Y: uint(y), Z: uint(z)}, cfg)
}

// Entry returns the first node of column (x, y).
func (c *Cube[T]) Entry(x, y int) (*Node[T], error) {
	return c.Node(topology.Address{X: uint(x), Y: uint(y)})
}

// Entries returns the first node of every column, ordered by address.
func (c *Cube[T]) Entries() []*Node[T] {
	return lo.Filter(c.Nodes(), func(n *Node[T], _ int) bool {
		return n.addr.Z == 0
	})
}

// Dimensions returns the grid's width, height and depth.
func (c *Cube[T]) Dimensions() (width, height, depth int) {
	return c.width, c.height, c.depth
}

func (c *Cube[T]) next(from topology.Address) (topology.Address, bool) {
	if int(from.Z)+1 >= c.depth {
		return topology.Address{}, true
	}
	return topology.Address{X: from.X, Y: from.Y, Z: from.Z + 1}, false
}
