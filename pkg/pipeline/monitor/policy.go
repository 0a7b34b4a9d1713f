package monitor

import (
	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// Policy decides a scaling command for a node from its snapshot.
type Policy interface {
	Decide(stats pipeline.NodeStats) pipeline.Command
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(stats pipeline.NodeStats) pipeline.Command

// Decide calls f.
func (f PolicyFunc) Decide(stats pipeline.NodeStats) pipeline.Command {
	return f(stats)
}

// DepthPolicy scales on the fill ratio of a node's input queue.
type DepthPolicy struct {
	// High is the fill ratio at or above which a worker is added.
	High float64
	// Low is the fill ratio at or below which a worker is removed.
	Low float64
}

// Decide returns ScaleUp when the queue is filling and the node has room to
// grow, ScaleDown when it is nearly empty and above its floor.
func (p DepthPolicy) Decide(stats pipeline.NodeStats) pipeline.Command {
	if stats.QueueCap == 0 {
		return pipeline.NoOp
	}
	fill := float64(stats.QueueLen) / float64(stats.QueueCap)

	switch {
	case fill >= p.High && (stats.MaxInstances == 0 || stats.Instances < stats.MaxInstances):
		return pipeline.ScaleUp
	case fill <= p.Low && stats.Instances > max(stats.MinInstances, 1):
		return pipeline.ScaleDown
	default:
		return pipeline.NoOp
	}
}
