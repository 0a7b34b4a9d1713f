package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// NextHop is a topology's default routing rule. It returns the address that
// follows from, or toOutput when envelopes leaving from go to the output.
type NextHop func(from topology.Address) (to topology.Address, toOutput bool)

// Config holds the settings shared by every topology builder.
type Config struct {
	// Name labels log lines and metrics.
	Name string

	// Logger receives engine events. A no-op logger is used when nil.
	Logger *zap.Logger

	// Metrics records engine activity. Metrics are disabled when nil.
	Metrics *metrics.Registry

	// ErrorBuffer is the capacity of the Errors channel. Errors that do not
	// fit are logged and counted, never blocking a worker.
	ErrorBuffer int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Name:        "pipeline",
		ErrorBuffer: 64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.ErrorBuffer == 0 {
		c.ErrorBuffer = d.ErrorBuffer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validate() error {
	return validation.ValidateNonNegative("pipeline", "ErrorBuffer", c.ErrorBuffer)
}

// Engine runs the workers of every node in a topology and routes envelopes
// between them. Chain, Mesh and Cube embed an Engine and differ only in
// shape and NextHop.
type Engine[T any] struct {
	config  Config
	log     *zap.Logger
	topo    *topology.Map[*Node[T]]
	nextHop NextHop
	input   *queue.Queue[*Envelope[T]]
	output  *queue.Queue[*Envelope[T]]

	mu      sync.Mutex
	nodeSeq int
	running bool

	stopping atomic.Bool
	// execMu serializes worker spawns with their instance bookkeeping.
	execMu sync.Mutex
	wg     sync.WaitGroup

	errs         chan error
	shutdownOnce sync.Once
	done         chan struct{}

	metricsMu sync.RWMutex
	metrics   *metrics.Registry
}

func newEngine[T any](config Config, topo *topology.Map[*Node[T]], output *queue.Queue[*Envelope[T]]) (*Engine[T], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if output == nil {
		return nil, errors.NewValidationError("pipeline", "output", nil, "cannot be nil").
			WithHint("pass the queue that receives finished envelopes")
	}
	config = config.withDefaults()

	return &Engine[T]{
		config:  config,
		log:     config.Logger.With(zap.String("topology", config.Name)),
		topo:    topo,
		output:  output,
		errs:    make(chan error, config.ErrorBuffer),
		done:    make(chan struct{}),
		metrics: config.Metrics,
	}, nil
}

// Name returns the topology name from the configuration.
func (e *Engine[T]) Name() string {
	return e.config.Name
}

// Topology returns the address map holding the nodes.
func (e *Engine[T]) Topology() *topology.Map[*Node[T]] {
	return e.topo
}

// Input returns the queue feeding the first node, or nil for topologies with
// several entry points.
func (e *Engine[T]) Input() *queue.Queue[*Envelope[T]] {
	return e.input
}

// Output returns the queue receiving finished envelopes.
func (e *Engine[T]) Output() *queue.Queue[*Envelope[T]] {
	return e.output
}

// Errors returns the channel on which stage, scaling and routing failures
// are reported. It is closed once Shutdown completes.
func (e *Engine[T]) Errors() <-chan error {
	return e.errs
}

// Nodes returns every node ordered by address.
func (e *Engine[T]) Nodes() []*Node[T] {
	return e.topo.Handles()
}

// Node returns the node at addr.
func (e *Engine[T]) Node(addr topology.Address) (*Node[T], error) {
	return e.topo.Get(addr)
}

// NodeByName returns the first node registered under name.
func (e *Engine[T]) NodeByName(name string) (*Node[T], error) {
	return e.topo.GetByName(name)
}

// Stats returns a snapshot of every node, ordered by address.
func (e *Engine[T]) Stats() []NodeStats {
	return lo.Map(e.Nodes(), func(n *Node[T], _ int) NodeStats {
		return n.Stats()
	})
}

// IsRunning reports whether Run has started the workers.
func (e *Engine[T]) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// bind creates a node for stage and places it at addr, or at the next free
// address when addr is nil.
func (e *Engine[T]) bind(stage Stage[T], cfg NodeConfig, q *queue.Queue[*Envelope[T]], addr *topology.Address) (*Node[T], error) {
	if err := validation.ValidateNotNil("pipeline", "stage", stage); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, errors.ErrAlreadyRunning
	}

	n := newNode(e.nodeSeq, stage, cfg, q)
	var (
		at  topology.Address
		err error
	)
	if addr == nil {
		at, err = e.topo.Add(n, cfg.Name)
	} else {
		at, err = e.topo.AddAt(n, cfg.Name, *addr)
	}
	if err != nil {
		return nil, err
	}
	n.addr = at
	n.prev = at
	e.nodeSeq++
	return n, nil
}

// newQueue creates a node input queue, falling back to fallback when
// capacity is zero.
func (e *Engine[T]) newQueue(capacity, fallback int) (*queue.Queue[*Envelope[T]], error) {
	if capacity == 0 {
		capacity = fallback
	}
	return queue.New[*Envelope[T]](capacity)
}

type startPlan[T any] struct {
	node       *Node[T]
	instances  []Stage[T]
	initArg    any
	generation uint64
}

// Run starts Instances workers for every node, in address order, and returns
// the number of nodes started. Every instance is cloned before the first
// worker starts, so a stage that refuses to clone aborts Run cleanly.
func (e *Engine[T]) Run() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return 0, errors.ErrAlreadyRunning
	}
	if e.stopping.Load() {
		return 0, errors.ErrClosed
	}

	nodes := e.topo.Handles()
	plans := make([]startPlan[T], 0, len(nodes))
	for _, n := range nodes {
		if n.prev != n.addr {
			pred, err := e.topo.Get(n.prev)
			if err != nil {
				return 0, fmt.Errorf("pipeline: node %d %s: predecessor: %w", n.id, n.addr, err)
			}
			n.pred = pred
			pred.drained.Store(true)
		}

		stage, arg, gen := n.stageSnapshot()
		count := n.Instances()
		instances := make([]Stage[T], count)
		instances[0] = stage
		for i := 1; i < count; i++ {
			clone := stage.Clone()
			if clone == nil {
				return 0, &ScaleError{NodeID: n.id, Address: n.addr, Instance: i, Err: errors.ErrCloneDisallowed}
			}
			instances[i] = clone
		}
		plans = append(plans, startPlan[T]{node: n, instances: instances, initArg: arg, generation: gen})
	}

	for _, p := range plans {
		n := p.node
		n.ctlMu.Lock()
		for id, inst := range p.instances {
			n.workers[id] = struct{}{}
			e.spawn(n, id, inst, p.initArg, p.generation)
		}
		n.nextInstance = len(p.instances)
		n.ctlMu.Unlock()

		e.withMetrics(func(r *metrics.Registry) {
			r.NodeInstances.WithLabelValues(e.config.Name, n.addr.String()).Set(float64(len(p.instances)))
			r.QueueCapacity.WithLabelValues(e.config.Name, n.addr.String()).Set(float64(n.queue.Cap()))
		})
		e.log.Debug("node started",
			zap.Int("node", n.id),
			zap.Stringer("address", n.addr),
			zap.Int("instances", len(p.instances)))
	}

	e.running = true
	e.log.Info("topology running", zap.Int("nodes", len(plans)))
	return len(plans), nil
}

// spawn starts one worker goroutine. The caller holds n.ctlMu.
func (e *Engine[T]) spawn(n *Node[T], id int, stage Stage[T], initArg any, generation uint64) {
	w := &worker[T]{
		engine:     e,
		node:       n,
		id:         id,
		stage:      stage,
		initArg:    initArg,
		generation: generation,
		log: e.log.With(
			zap.Int("node", n.id),
			zap.Stringer("address", n.addr),
			zap.Int("instance", id)),
	}
	e.wg.Add(1)
	go w.run()
}

// Shutdown stops the topology: every node queue and the output queue are
// closed, envelopes still queued are dropped, and workers end their
// instances. The returned channel is closed once every worker has exited.
func (e *Engine[T]) Shutdown() <-chan struct{} {
	e.shutdownOnce.Do(func() {
		e.stopping.Store(true)
		e.log.Info("topology shutting down")

		for _, n := range e.topo.Handles() {
			n.queue.Close()
		}
		e.output.Close()

		go func() {
			e.wg.Wait()
			close(e.errs)
			close(e.done)
			e.log.Info("topology stopped")
		}()
	})
	return e.done
}

// report delivers err to the Errors channel without blocking.
func (e *Engine[T]) report(err error) {
	select {
	case e.errs <- err:
	default:
		e.log.Warn("error sink full, dropping error", zap.Error(err))
		e.withMetrics(func(r *metrics.Registry) {
			r.ErrorsDropped.WithLabelValues(e.config.Name).Inc()
		})
	}
}

func (e *Engine[T]) withMetrics(fn func(*metrics.Registry)) {
	e.metricsMu.RLock()
	r := e.metrics
	e.metricsMu.RUnlock()
	if r != nil {
		fn(r)
	}
}

// EnableMetrics starts recording into a registry built from config.
func (e *Engine[T]) EnableMetrics(config metrics.Config) error {
	if !config.Enabled {
		e.DisableMetrics()
		return nil
	}
	r := metrics.NewRegistryWithConfig(config)
	e.metricsMu.Lock()
	e.metrics = r
	e.metricsMu.Unlock()
	return nil
}

// DisableMetrics stops recording metrics.
func (e *Engine[T]) DisableMetrics() {
	e.metricsMu.Lock()
	e.metrics = nil
	e.metricsMu.Unlock()
}

// MetricsEnabled returns true if metrics are currently recorded.
func (e *Engine[T]) MetricsEnabled() bool {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	return e.metrics != nil
}

var _ metrics.Instrumentable = (*Engine[int])(nil)
