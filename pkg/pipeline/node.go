package pipeline

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// NodeConfig describes how a stage is attached to a topology.
type NodeConfig struct {
	// Name registers the node under an extra name for AttrNextName routing.
	// The address string is used when empty.
	Name string

	// Instances is the number of workers started by Run. Zero means one.
	Instances int

	// InitArg is passed to Stage.Init of every instance.
	InitArg any

	// QueueCapacity sizes the node's input queue. Zero inherits the
	// topology default.
	QueueCapacity int

	// MinInstances is the floor for ScaleDown. Zero means no floor beyond
	// the last remaining worker.
	MinInstances int

	// MaxInstances is the ceiling for ScaleUp. Zero means unbounded.
	MaxInstances int
}

func (c NodeConfig) validate() error {
	if err := validation.ValidateNonNegative("pipeline", "Instances", c.Instances); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "QueueCapacity", c.QueueCapacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "MinInstances", c.MinInstances); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "MaxInstances", c.MaxInstances); err != nil {
		return err
	}
	if c.MaxInstances > 0 && c.instances() > c.MaxInstances {
		return errors.NewValidationError("pipeline", "Instances", c.Instances, "exceeds MaxInstances").
			WithHint("raise MaxInstances or leave it at 0 for no ceiling")
	}
	if c.MaxInstances > 0 && c.MinInstances > c.MaxInstances {
		return errors.NewValidationError("pipeline", "MinInstances", c.MinInstances, "exceeds MaxInstances")
	}
	return nil
}

func (c NodeConfig) instances() int {
	if c.Instances == 0 {
		return 1
	}
	return c.Instances
}

// Node is one stage bound to a topology address, with its own input queue
// and worker pool.
type Node[T any] struct {
	id   int
	name string
	addr topology.Address
	prev topology.Address
	pred *Node[T]

	// drained is set by Run when some other node takes this one as its
	// predecessor.
	drained atomic.Bool

	queue *queue.Queue[*Envelope[T]]

	// ctlMu guards the instance counts, the mailbox and the worker set.
	ctlMu        sync.Mutex
	current      int
	min          int
	max          int
	mailbox      []Command
	workers      map[int]struct{}
	nextInstance int

	stageMu    sync.RWMutex
	stage      Stage[T]
	initArg    any
	generation uint64
}

func newNode[T any](id int, stage Stage[T], cfg NodeConfig, q *queue.Queue[*Envelope[T]]) *Node[T] {
	return &Node[T]{
		id:      id,
		name:    cfg.Name,
		queue:   q,
		current: cfg.instances(),
		min:     cfg.MinInstances,
		max:     cfg.MaxInstances,
		workers: make(map[int]struct{}),
		stage:   stage,
		initArg: cfg.InitArg,
	}
}

// ID returns the node's identifier, unique within its topology.
func (n *Node[T]) ID() int {
	return n.id
}

// Name returns the name the node was registered under.
func (n *Node[T]) Name() string {
	if n.name == "" {
		return n.addr.String()
	}
	return n.name
}

// Address returns the node's position in the topology.
func (n *Node[T]) Address() topology.Address {
	return n.addr
}

// PrevAddress returns the address of the node's predecessor. A node that is
// its own predecessor drains no scaling commands.
func (n *Node[T]) PrevAddress() topology.Address {
	return n.prev
}

// HasSuccessor reports whether another node's workers consume this node's
// mailbox. It is false until the topology runs, and stays false for exit
// nodes, whose mailbox nobody drains.
func (n *Node[T]) HasSuccessor() bool {
	return n.drained.Load()
}

// Queue returns the node's input queue.
func (n *Node[T]) Queue() *queue.Queue[*Envelope[T]] {
	return n.queue
}

// Stage returns the current stage template.
func (n *Node[T]) Stage() Stage[T] {
	n.stageMu.RLock()
	defer n.stageMu.RUnlock()
	return n.stage
}

// InitArg returns the argument passed to Stage.Init.
func (n *Node[T]) InitArg() any {
	n.stageMu.RLock()
	defer n.stageMu.RUnlock()
	return n.initArg
}

// SetStage replaces the stage template. Live workers end their instance and
// switch to the new stage before their next envelope.
func (n *Node[T]) SetStage(stage Stage[T], initArg any) error {
	if err := validation.ValidateNotNil("pipeline", "stage", stage); err != nil {
		return err
	}
	n.stageMu.Lock()
	n.stage = stage
	n.initArg = initArg
	n.generation++
	n.stageMu.Unlock()
	return nil
}

func (n *Node[T]) stageSnapshot() (Stage[T], any, uint64) {
	n.stageMu.RLock()
	defer n.stageMu.RUnlock()
	return n.stage, n.initArg, n.generation
}

// Instances returns the number of live worker instances.
func (n *Node[T]) Instances() int {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return n.current
}

// MinInstances returns the ScaleDown floor.
func (n *Node[T]) MinInstances() int {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return n.min
}

// MaxInstances returns the ScaleUp ceiling; zero means unbounded.
func (n *Node[T]) MaxInstances() int {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return n.max
}

// SetInstanceBounds changes the scaling floor and ceiling. Live workers are
// not started or stopped; the bounds apply to the next commands.
func (n *Node[T]) SetInstanceBounds(min, max int) error {
	if err := validation.ValidateNonNegative("pipeline", "MinInstances", min); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "MaxInstances", max); err != nil {
		return err
	}
	if max > 0 && min > max {
		return errors.NewValidationError("pipeline", "MinInstances", min, "exceeds MaxInstances")
	}
	n.ctlMu.Lock()
	n.min, n.max = min, max
	n.ctlMu.Unlock()
	return nil
}

// PushCommand leaves cmd in the node's mailbox for its successors.
func (n *Node[T]) PushCommand(cmd Command) {
	n.ctlMu.Lock()
	n.mailbox = append(n.mailbox, cmd)
	n.ctlMu.Unlock()
}

// NextCommand removes the most recently pushed command. The boolean is false
// when the mailbox is empty.
func (n *Node[T]) NextCommand() (Command, bool) {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return n.popCommandLocked()
}

func (n *Node[T]) popCommandLocked() (Command, bool) {
	last := len(n.mailbox) - 1
	if last < 0 {
		return NoOp, false
	}
	cmd := n.mailbox[last]
	n.mailbox = n.mailbox[:last]
	return cmd, true
}

// PendingCommands returns the number of commands waiting in the mailbox.
func (n *Node[T]) PendingCommands() int {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return len(n.mailbox)
}

// Workers returns the instance ids of the live workers, in ascending order.
func (n *Node[T]) Workers() []int {
	n.ctlMu.Lock()
	ids := lo.Keys(n.workers)
	n.ctlMu.Unlock()

	slices.Sort(ids)
	return ids
}

func (n *Node[T]) removeWorker(id int) {
	n.ctlMu.Lock()
	delete(n.workers, id)
	n.ctlMu.Unlock()
}

// retire gives back the instance slot of a worker that failed.
func (n *Node[T]) retire() {
	n.ctlMu.Lock()
	if n.current > 0 {
		n.current--
	}
	n.ctlMu.Unlock()
}

// NodeStats is a point-in-time view of a node.
type NodeStats struct {
	ID              int
	Name            string
	Address         topology.Address
	Instances       int
	MinInstances    int
	MaxInstances    int
	Workers         int
	QueueLen        int
	QueueCap        int
	PendingCommands int
}

// Stats returns a snapshot of the node's counters.
func (n *Node[T]) Stats() NodeStats {
	n.ctlMu.Lock()
	defer n.ctlMu.Unlock()
	return NodeStats{
		ID:              n.id,
		Name:            n.Name(),
		Address:         n.addr,
		Instances:       n.current,
		MinInstances:    n.min,
		MaxInstances:    n.max,
		Workers:         len(n.workers),
		QueueLen:        n.queue.Len(),
		QueueCap:        n.queue.Cap(),
		PendingCommands: len(n.mailbox),
	}
}
