package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label names shared by the pipeline metrics.
const (
	LabelTopology  = "topology"
	LabelNode      = "node"
	LabelPhase     = "phase"
	LabelDirection = "direction"
	LabelOutcome   = "outcome"
	LabelReason    = "reason"
)

// Registry holds all metric instances for a pipeline engine.
type Registry struct {
	// Throughput
	EnvelopesProcessed *prometheus.CounterVec
	EnvelopesDropped   *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec

	// Failures
	StageErrors   *prometheus.CounterVec
	ErrorsDropped *prometheus.CounterVec

	// Elasticity
	ScaleEvents   *prometheus.CounterVec
	NodeInstances *prometheus.GaugeVec

	// Queues
	QueueDepth    *prometheus.GaugeVec
	QueueCapacity *prometheus.GaugeVec

	// Monitor
	MonitorSamples *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a registry bound to prometheus.DefaultRegisterer. It is
// created on first use so that importing the package registers nothing.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: DefaultNamespace,
	})
}

// NewRegistryWithConfig creates a registry honoring the namespace and
// constant labels of config.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)
	node := []string{LabelTopology, LabelNode}

	return &Registry{
		EnvelopesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "node",
				Name:        "envelopes_processed_total",
				Help:        "Total number of envelopes run through a node's stage",
				ConstLabels: config.Labels,
			},
			node,
		),

		EnvelopesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "router",
				Name:        "envelopes_dropped_total",
				Help:        "Total number of envelopes that could not be routed",
				ConstLabels: config.Labels,
			},
			[]string{LabelTopology, LabelNode, LabelReason},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "node",
				Name:        "stage_duration_seconds",
				Help:        "Time spent in a stage's Run call",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: config.Labels,
			},
			node,
		),

		StageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "node",
				Name:        "stage_errors_total",
				Help:        "Total number of stage failures, by lifecycle phase",
				ConstLabels: config.Labels,
			},
			[]string{LabelTopology, LabelNode, LabelPhase},
		),

		ErrorsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "engine",
				Name:        "errors_dropped_total",
				Help:        "Errors discarded because the error sink was full",
				ConstLabels: config.Labels,
			},
			[]string{LabelTopology},
		),

		ScaleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "node",
				Name:        "scale_events_total",
				Help:        "Scaling commands consumed, by direction and outcome",
				ConstLabels: config.Labels,
			},
			[]string{LabelTopology, LabelNode, LabelDirection, LabelOutcome},
		),

		NodeInstances: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "node",
				Name:        "instances",
				Help:        "Current number of live worker instances",
				ConstLabels: config.Labels,
			},
			node,
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "depth",
				Help:        "Envelopes waiting in a node's input queue",
				ConstLabels: config.Labels,
			},
			node,
		),

		QueueCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "capacity",
				Help:        "Capacity of a node's input queue",
				ConstLabels: config.Labels,
			},
			node,
		),

		MonitorSamples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "monitor",
				Name:        "samples_total",
				Help:        "Number of topology snapshots taken by the monitor",
				ConstLabels: config.Labels,
			},
			[]string{LabelTopology},
		),
	}
}
