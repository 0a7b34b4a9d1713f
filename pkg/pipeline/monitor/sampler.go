package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Target is a topology the sampler can observe. Chain, Mesh and Cube
// satisfy it.
type Target[T any] interface {
	Name() string
	Nodes() []*pipeline.Node[T]
	Node(addr topology.Address) (*pipeline.Node[T], error)
}

// Publisher ships snapshots somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, topology string, stats []pipeline.NodeStats) error
}

// Config holds sampler settings.
type Config struct {
	// Schedule is a cron spec; descriptors such as "@every 5s" work.
	Schedule string

	// Policy turns snapshots into scaling commands. Nil disables scaling.
	Policy Policy

	// Publisher receives every snapshot. Nil disables publishing.
	Publisher Publisher

	// PublishTimeout bounds one Publish call.
	PublishTimeout time.Duration

	// Logger receives sampler events. A no-op logger is used when nil.
	Logger *zap.Logger

	// Metrics counts samples. Disabled when nil.
	Metrics *metrics.Registry
}

// DefaultConfig samples every second without scaling or publishing.
func DefaultConfig() Config {
	return Config{
		Schedule:       "@every 1s",
		PublishTimeout: 2 * time.Second,
	}
}

// Sampler periodically snapshots a topology.
type Sampler[T any] struct {
	target Target[T]
	config Config
	log    *zap.Logger
	cron   *cron.Cron

	mu      sync.RWMutex
	last    []pipeline.NodeStats
	samples atomic.Int64
}

// New creates a sampler. The schedule is validated here.
func New[T any](target Target[T], config Config) (*Sampler[T], error) {
	if target == nil {
		return nil, errors.NewValidationError("monitor", "target", nil, "cannot be nil")
	}
	d := DefaultConfig()
	if config.Schedule == "" {
		config.Schedule = d.Schedule
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = d.PublishTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if err := validation.ValidatePositiveDuration("monitor", "PublishTimeout", config.PublishTimeout); err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, errors.NewValidationError("monitor", "Schedule", config.Schedule, err.Error()).
			WithHint(`use a cron expression or a descriptor such as "@every 5s"`)
	}

	s := &Sampler[T]{
		target: target,
		config: config,
		log:    config.Logger.With(zap.String("topology", target.Name())),
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(config.Schedule, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins sampling in the background.
func (s *Sampler[T]) Start() {
	s.cron.Start()
	s.log.Info("monitor started", zap.String("schedule", s.config.Schedule))
}

// Stop halts the schedule and waits for a running sample to finish.
func (s *Sampler[T]) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("monitor stopped", zap.Int64("samples", s.samples.Load()))
}

func (s *Sampler[T]) tick() {
	if err := s.Sample(context.Background()); err != nil {
		s.log.Warn("sample failed", zap.Error(err))
	}
}

// Sample takes one snapshot, applies the policy and publishes the result.
func (s *Sampler[T]) Sample(ctx context.Context) error {
	nodes := s.target.Nodes()
	stats := lo.Map(nodes, func(n *pipeline.Node[T], _ int) pipeline.NodeStats {
		return n.Stats()
	})

	if s.config.Policy != nil {
		for i, n := range nodes {
			if n.PrevAddress() == n.Address() {
				continue
			}
			cmd := s.config.Policy.Decide(stats[i])
			if cmd == pipeline.NoOp {
				continue
			}
			pred, err := s.target.Node(n.PrevAddress())
			if err != nil {
				s.log.Warn("predecessor missing", zap.Stringer("address", n.Address()), zap.Error(err))
				continue
			}
			pred.PushCommand(cmd)
			s.log.Debug("scaling requested",
				zap.Stringer("address", n.Address()),
				zap.Stringer("command", cmd),
				zap.Int("queue_len", stats[i].QueueLen))
		}
	}

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()
	s.samples.Add(1)
	if s.config.Metrics != nil {
		s.config.Metrics.MonitorSamples.WithLabelValues(s.target.Name()).Inc()
	}

	if s.config.Publisher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
	defer cancel()
	return s.config.Publisher.Publish(ctx, s.target.Name(), stats)
}

// Last returns the most recent snapshot.
func (s *Sampler[T]) Last() []pipeline.NodeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pipeline.NodeStats(nil), s.last...)
}

// Samples returns how many snapshots have been taken.
func (s *Sampler[T]) Samples() int64 {
	return s.samples.Load()
}
