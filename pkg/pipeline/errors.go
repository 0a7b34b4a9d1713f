package pipeline

import (
	"fmt"

	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Phase names the stage lifecycle call that failed.
type Phase string

const (
	PhaseInit  Phase = "init"
	PhaseRun   Phase = "run"
	PhaseEnd   Phase = "end"
	PhaseClone Phase = "clone"
)

// StageError reports a failed or panicking stage call. The worker that
// produced it has been retired. Envelope holds the *Envelope[T] being
// processed, or nil outside Run.
type StageError struct {
	NodeID   int
	Address  topology.Address
	Instance int
	Phase    Phase
	Envelope any
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: node %d %s instance %d: %s: %v",
		e.NodeID, e.Address, e.Instance, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ScaleError reports a worker that could not be spawned.
type ScaleError struct {
	NodeID   int
	Address  topology.Address
	Instance int
	Err      error
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("pipeline: node %d %s: cannot spawn instance %d: %v",
		e.NodeID, e.Address, e.Instance, e.Err)
}

func (e *ScaleError) Unwrap() error {
	return e.Err
}

// RouteError reports an envelope dropped because its destination could not
// be resolved or accepted.
type RouteError struct {
	NodeID   int
	Address  topology.Address
	Target   string
	Envelope any
	Err      error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("pipeline: node %d %s: cannot route to %s: %v",
		e.NodeID, e.Address, e.Target, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}
