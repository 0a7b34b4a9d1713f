package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/pipexec/internal/testutil"
	pxerrors "github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
)

// newTestChain builds an idle head -> tail chain. The tail has a queue of
// four slots and may grow to three workers.
func newTestChain(t *testing.T) *pipeline.Chain[int] {
	t.Helper()
	in := queue.MustNew[*pipeline.Envelope[int]](4)
	out := queue.MustNew[*pipeline.Envelope[int]](4)

	c, err := pipeline.NewChain[int](pipeline.Passthrough[int]{}, in, out, 1, nil)
	testutil.AssertNoError(t, err)
	_, err = c.AddStage(pipeline.Passthrough[int]{}, pipeline.NodeConfig{
		Name:          "tail",
		Instances:     1,
		MaxInstances:  3,
		QueueCapacity: 4,
	})
	testutil.AssertNoError(t, err)
	return c
}

type recordingPublisher struct {
	topology string
	stats    []pipeline.NodeStats
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topology string, stats []pipeline.NodeStats) error {
	p.topology = topology
	p.stats = stats
	return p.err
}

func TestNewValidation(t *testing.T) {
	c := newTestChain(t)

	if _, err := New[int](nil, Config{}); !pxerrors.IsValidationError(err) {
		t.Errorf("nil target: expected validation error, got %v", err)
	}
	if _, err := New[int](c, Config{Schedule: "every now and then"}); !pxerrors.IsValidationError(err) {
		t.Errorf("bad schedule: expected validation error, got %v", err)
	}
	if _, err := New[int](c, Config{PublishTimeout: -time.Second}); !pxerrors.IsValidationError(err) {
		t.Errorf("negative publish timeout: expected validation error, got %v", err)
	}

	s, err := New[int](c, Config{})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, s.config.Schedule, DefaultConfig().Schedule)
	testutil.AssertEqual(t, s.config.PublishTimeout, DefaultConfig().PublishTimeout)
}

func TestSampleScalesPredecessor(t *testing.T) {
	c := newTestChain(t)
	tail := c.Tail()
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, tail.Queue().Push(pipeline.NewEnvelope(i)))
	}

	s, err := New[int](c, Config{Policy: DepthPolicy{High: 0.75, Low: 0.1}})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, s.Sample(context.Background()))

	if got := c.Head().PendingCommands(); got != 1 {
		t.Fatalf("head mailbox has %d commands, want 1", got)
	}
	cmd, _ := c.Head().NextCommand()
	testutil.AssertEqual(t, cmd, pipeline.ScaleUp)
	if got := tail.PendingCommands(); got != 0 {
		t.Errorf("tail mailbox has %d commands, the head is never judged", got)
	}
}

func TestSampleRecordsAndPublishes(t *testing.T) {
	c := newTestChain(t)
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	pub := &recordingPublisher{}

	s, err := New[int](c, Config{Publisher: pub, Metrics: reg})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, s.Sample(context.Background()))
	testutil.AssertNoError(t, s.Sample(context.Background()))

	testutil.AssertEqual(t, s.Samples(), int64(2))
	testutil.AssertEqual(t, len(s.Last()), 2)
	testutil.AssertEqual(t, pub.topology, c.Name())
	testutil.AssertEqual(t, pub.stats[1].Name, "tail")
	testutil.AssertEqual(t, promtest.ToFloat64(reg.MonitorSamples.WithLabelValues(c.Name())), 2.0)
}

func TestSamplePublishError(t *testing.T) {
	c := newTestChain(t)
	boom := errors.New("boom")

	s, err := New[int](c, Config{Publisher: &recordingPublisher{err: boom}})
	testutil.AssertNoError(t, err)

	if err := s.Sample(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Sample() error = %v, want boom", err)
	}
	testutil.AssertEqual(t, s.Samples(), int64(1))
}

func TestSamplerSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the one second cron tick")
	}
	c := newTestChain(t)
	logger, logs := testutil.ObservedLogger()

	s, err := New[int](c, Config{Schedule: "@every 1s", Logger: logger})
	testutil.AssertNoError(t, err)

	s.Start()
	testutil.Eventually(t, func() bool { return s.Samples() >= 1 }, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	testutil.AssertEqual(t, logs.FilterMessage("monitor started").Len(), 1)
	testutil.AssertEqual(t, logs.FilterMessage("monitor stopped").Len(), 1)
}
