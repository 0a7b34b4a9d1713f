package pipeline

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Reasons attached to dropped envelopes in logs and metrics.
const (
	dropUnknownName    = "unknown_name"
	dropUnknownAddress = "unknown_address"
	dropInvalidTarget  = "invalid_target"
	dropClosed         = "closed"
	dropShutdown       = "shutdown"
)

// worker runs one instance of a node's stage.
type worker[T any] struct {
	engine     *Engine[T]
	node       *Node[T]
	id         int
	stage      Stage[T]
	initArg    any
	generation uint64
	terminate  bool
	log        *zap.Logger
}

func (w *worker[T]) run() {
	defer w.engine.wg.Done()
	defer w.node.removeWorker(w.id)

	if err := safeCall(func() error { return w.stage.Init(w.initArg) }); err != nil {
		w.fail(PhaseInit, nil, err)
		return
	}
	w.log.Debug("worker started")

	for {
		env, err := w.node.queue.Pop()
		if err != nil {
			w.end()
			w.log.Debug("worker stopped", zap.String("reason", "queue closed"))
			return
		}
		if w.engine.stopping.Load() {
			w.drop(env, "", dropShutdown, errors.ErrClosed)
			continue
		}

		w.applyCommands()

		if !w.refreshStage() {
			return
		}

		if !w.process(env) {
			return
		}

		if w.terminate {
			w.end()
			w.log.Debug("worker stopped", zap.String("reason", "scaled down"))
			return
		}
	}
}

// applyCommands drains the predecessor's mailbox. Locks are taken
// predecessor first and released in reverse order.
func (w *worker[T]) applyCommands() {
	n := w.node
	pred := n.pred
	if pred == nil {
		return
	}

	pred.ctlMu.Lock()
	n.ctlMu.Lock()
	for {
		cmd, ok := pred.popCommandLocked()
		if !ok {
			break
		}
		switch cmd {
		case ScaleUp:
			w.scaleUpLocked()
		case ScaleDown:
			w.scaleDownLocked()
		}
	}
	n.ctlMu.Unlock()
	pred.ctlMu.Unlock()
}

// scaleUpLocked spawns one more worker. The caller holds n.ctlMu.
func (w *worker[T]) scaleUpLocked() {
	e, n := w.engine, w.node
	if n.max != 0 && n.current >= n.max {
		w.scaleEvent("up", "capped")
		return
	}
	if e.stopping.Load() {
		return
	}

	e.execMu.Lock()
	defer e.execMu.Unlock()

	stage, arg, gen := n.stageSnapshot()
	id := n.nextInstance
	clone := stage.Clone()
	if clone == nil {
		err := &ScaleError{NodeID: n.id, Address: n.addr, Instance: id, Err: errors.ErrCloneDisallowed}
		w.log.Error("scale up failed", zap.Int("requested_instance", id), zap.Error(errors.ErrCloneDisallowed))
		w.scaleEvent("up", "failed")
		e.report(err)
		return
	}

	n.nextInstance++
	n.current++
	n.workers[id] = struct{}{}
	e.spawn(n, id, clone, arg, gen)

	w.scaleEvent("up", "applied")
	w.log.Info("scaled up", zap.Int("new_instance", id), zap.Int("instances", n.current))
}

// scaleDownLocked marks this worker for exit unless the pool is at its
// floor. A worker retires at most once. The caller holds n.ctlMu.
func (w *worker[T]) scaleDownLocked() {
	n := w.node
	if w.terminate {
		return
	}
	if (n.min == 0 || n.current > n.min) && n.current > 1 {
		w.terminate = true
		n.current--
		w.scaleEvent("down", "applied")
		w.log.Info("scaling down", zap.Int("instances", n.current))
		return
	}
	w.scaleEvent("down", "capped")
}

func (w *worker[T]) scaleEvent(direction, outcome string) {
	n := w.node
	w.engine.withMetrics(func(r *metrics.Registry) {
		name, addr := w.engine.config.Name, n.addr.String()
		r.ScaleEvents.WithLabelValues(name, addr, direction, outcome).Inc()
		r.NodeInstances.WithLabelValues(name, addr).Set(float64(n.current))
	})
}

// refreshStage switches to a hot-swapped stage. It returns false when the
// worker had to retire.
func (w *worker[T]) refreshStage() bool {
	stage, arg, gen := w.node.stageSnapshot()
	if gen == w.generation {
		return true
	}

	if err := safeCall(func() error { return w.stage.End(nil) }); err != nil {
		w.log.Warn("ending replaced stage failed", zap.Error(err))
		w.engine.report(w.stageError(PhaseEnd, nil, err))
	}

	next := stage
	if w.id != 0 {
		next = stage.Clone()
		if next == nil {
			w.fail(PhaseClone, nil, errors.ErrCloneDisallowed)
			return false
		}
	}
	w.stage, w.initArg, w.generation = next, arg, gen

	if err := safeCall(func() error { return next.Init(arg) }); err != nil {
		w.fail(PhaseInit, nil, err)
		return false
	}
	w.log.Info("stage swapped", zap.Uint64("generation", gen))
	return true
}

// process runs the stage on env and routes the result. It returns false
// when the stage failed and the worker retired.
func (w *worker[T]) process(env *Envelope[T]) bool {
	env.node = w.node

	start := time.Now()
	err := safeCall(func() error { return w.stage.Run(env) })
	elapsed := time.Since(start)

	if err != nil {
		w.fail(PhaseRun, env, err)
		return false
	}

	w.engine.withMetrics(func(r *metrics.Registry) {
		name, addr := w.engine.config.Name, w.node.addr.String()
		r.EnvelopesProcessed.WithLabelValues(name, addr).Inc()
		r.StageDuration.WithLabelValues(name, addr).Observe(elapsed.Seconds())
		r.QueueDepth.WithLabelValues(name, addr).Set(float64(w.node.queue.Len()))
	})

	w.route(env)
	return true
}

// route delivers env to its next hop: an explicit name, then an explicit
// address, then the topology default. Routing attributes are consumed so a
// redirected envelope does not bounce back to the same target.
func (w *worker[T]) route(env *Envelope[T]) {
	e := w.engine

	if raw, ok := env.Attribute(AttrNextName); ok {
		env.DeleteAttribute(AttrNextName)
		name, isString := raw.(string)
		if !isString {
			w.drop(env, fmt.Sprint(raw), dropInvalidTarget, errors.ErrInvalidConfiguration)
			return
		}
		if name == OutputName {
			w.emit(env)
			return
		}
		target, err := e.topo.GetByName(name)
		if err != nil {
			w.drop(env, name, dropUnknownName, err)
			return
		}
		w.forward(target, env)
		return
	}

	if raw, ok := env.Attribute(AttrNextAddress); ok {
		env.DeleteAttribute(AttrNextAddress)
		addr, isAddr := raw.(topology.Address)
		if !isAddr {
			w.drop(env, fmt.Sprint(raw), dropInvalidTarget, errors.ErrInvalidConfiguration)
			return
		}
		target, err := e.topo.Get(addr)
		if err != nil {
			w.drop(env, addr.String(), dropUnknownAddress, err)
			return
		}
		w.forward(target, env)
		return
	}

	to, toOutput := e.nextHop(w.node.addr)
	if toOutput {
		w.emit(env)
		return
	}
	target, err := e.topo.Get(to)
	if err != nil {
		w.drop(env, to.String(), dropUnknownAddress, err)
		return
	}
	w.forward(target, env)
}

func (w *worker[T]) forward(target *Node[T], env *Envelope[T]) {
	if err := target.queue.Push(env); err != nil {
		w.drop(env, target.addr.String(), dropClosed, err)
	}
}

func (w *worker[T]) emit(env *Envelope[T]) {
	if err := w.engine.output.Push(env); err != nil {
		w.drop(env, OutputName, dropClosed, err)
	}
}

// drop discards env. Routing mistakes are reported on the error sink;
// envelopes lost to shutdown are only counted.
func (w *worker[T]) drop(env *Envelope[T], target, reason string, cause error) {
	e := w.engine
	e.withMetrics(func(r *metrics.Registry) {
		r.EnvelopesDropped.WithLabelValues(e.config.Name, w.node.addr.String(), reason).Inc()
	})

	if reason == dropShutdown || (reason == dropClosed && e.stopping.Load()) {
		w.log.Debug("envelope dropped", zap.Stringer("envelope", env.ID()), zap.String("reason", reason))
		return
	}

	w.log.Warn("envelope dropped",
		zap.Stringer("envelope", env.ID()),
		zap.String("target", target),
		zap.String("reason", reason),
		zap.Error(cause))
	e.report(&RouteError{
		NodeID:   w.node.id,
		Address:  w.node.addr,
		Target:   target,
		Envelope: env,
		Err:      cause,
	})
}

// fail reports a stage failure and retires the worker's instance.
func (w *worker[T]) fail(phase Phase, env *Envelope[T], err error) {
	fields := []zap.Field{zap.String("phase", string(phase)), zap.Error(err)}
	if env != nil {
		fields = append(fields, zap.Stringer("envelope", env.ID()))
	}
	w.log.Error("stage failed, retiring worker", fields...)

	w.engine.withMetrics(func(r *metrics.Registry) {
		r.StageErrors.WithLabelValues(w.engine.config.Name, w.node.addr.String(), string(phase)).Inc()
	})

	var envelope any
	if env != nil {
		envelope = env
	}
	w.engine.report(w.stageError(phase, envelope, err))

	if phase == PhaseRun {
		if endErr := safeCall(func() error { return w.stage.End(nil) }); endErr != nil {
			w.log.Warn("ending failed stage", zap.Error(endErr))
		}
	}
	w.node.retire()
}

func (w *worker[T]) stageError(phase Phase, envelope any, err error) *StageError {
	return &StageError{
		NodeID:   w.node.id,
		Address:  w.node.addr,
		Instance: w.id,
		Phase:    phase,
		Envelope: envelope,
		Err:      err,
	}
}

// end finalizes the instance on a normal exit.
func (w *worker[T]) end() {
	if err := safeCall(func() error { return w.stage.End(nil) }); err != nil {
		w.log.Warn("stage end failed", zap.Error(err))
		w.engine.withMetrics(func(r *metrics.Registry) {
			r.StageErrors.WithLabelValues(w.engine.config.Name, w.node.addr.String(), string(PhaseEnd)).Inc()
		})
		w.engine.report(w.stageError(PhaseEnd, nil, err))
	}
}

// safeCall runs fn, turning a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
