package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/internal/config"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/pipeline/monitor"
	"github.com/vnykmshr/pipexec/pkg/streaming/queue"
)

type runOptions struct {
	configPath  string
	envelopes   int
	metricsAddr string
	timeout     time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a topology, push envelopes through it and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := config.LoadTopology(opts.configPath)
			if err != nil {
				return err
			}
			if opts.metricsAddr == "" {
				opts.metricsAddr = a.env.MetricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := &runner{env: a.env, logger: a.logger, opts: opts}
			sum, err := r.run(ctx, topo)
			if err != nil {
				return err
			}
			sum.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "topology.yaml", "topology description")
	cmd.Flags().IntVarP(&opts.envelopes, "envelopes", "n", 100, "number of envelopes to push")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "give up waiting for envelopes after this long")
	return cmd
}

type summary struct {
	topology  string
	pushed    int
	completed int
	failed    int
	elapsed   time.Duration
	nodes     []pipeline.NodeStats
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "topology %s: %d pushed, %d completed, %d failed in %s\n",
		s.topology, s.pushed, s.completed, s.failed, s.elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDRESS\tNAME\tINSTANCES\tMIN\tMAX")
	for _, n := range s.nodes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n",
			n.ID, n.Address, n.Name, n.Instances, n.MinInstances, n.MaxInstances)
	}
	_ = tw.Flush()
}

type runner struct {
	env    *config.Env
	logger *zap.Logger
	opts   runOptions
}

func (r *runner) run(ctx context.Context, topo *config.Topology) (summary, error) {
	sum := summary{topology: topo.Name}

	var m *metrics.Registry
	if r.opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewRegistryWithConfig(metrics.Config{
			Enabled:   true,
			Registry:  reg,
			Namespace: r.env.MetricsNamespace,
		})
		srv := r.serveMetrics(reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	h, err := build(topo, r.logger, r.env.ErrorBuffer, m)
	if err != nil {
		return sum, err
	}

	sampler, closeRedis, err := r.newSampler(h, topo, m)
	if err != nil {
		<-h.Shutdown()
		return sum, err
	}
	defer closeRedis()

	if _, err := h.Run(); err != nil {
		<-h.Shutdown()
		return sum, err
	}
	if sampler != nil {
		sampler.Start()
	}

	start := time.Now()
	completed := make(chan struct{}, r.opts.envelopes)
	go drainOutput(h.Output(), completed)

	pushDone := make(chan int, 1)
	go func() {
		n := 0
		for ; n < r.opts.envelopes; n++ {
			if err := h.push(pipeline.NewEnvelope(Job(n))); err != nil {
				break
			}
		}
		pushDone <- n
	}()

	sum.completed, sum.failed = r.await(ctx, h, completed)

	if sampler != nil {
		sampler.Stop()
	}
	<-h.Shutdown()
	sum.pushed = <-pushDone
	sum.elapsed = time.Since(start)
	sum.nodes = h.Stats()
	return sum, nil
}

// await counts finished and lost envelopes until all are accounted for, the
// timeout passes or ctx is cancelled.
func (r *runner) await(ctx context.Context, h *topologyHandle, completed <-chan struct{}) (done, failed int) {
	timer := time.NewTimer(r.opts.timeout)
	defer timer.Stop()

	for done+failed < r.opts.envelopes {
		select {
		case <-completed:
			done++
		case err := <-h.Errors():
			if lostEnvelope(err) {
				failed++
			}
		case <-timer.C:
			r.logger.Warn("timed out waiting for envelopes",
				zap.Int("completed", done), zap.Int("failed", failed))
			return done, failed
		case <-ctx.Done():
			r.logger.Info("interrupted", zap.Int("completed", done))
			return done, failed
		}
	}
	return done, failed
}

func lostEnvelope(err error) bool {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Phase == pipeline.PhaseRun && stageErr.Envelope != nil
	}
	var routeErr *pipeline.RouteError
	return errors.As(err, &routeErr)
}

func drainOutput(out *queue.Queue[*pipeline.Envelope[Job]], completed chan<- struct{}) {
	for {
		if _, err := out.Pop(); err != nil {
			return
		}
		completed <- struct{}{}
	}
}

func (r *runner) serveMetrics(reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: r.opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	r.logger.Info("serving metrics", zap.String("addr", r.opts.metricsAddr))
	return srv
}

// newSampler wires the monitor when the topology asks for scaling or the
// environment names a Redis server.
func (r *runner) newSampler(h *topologyHandle, topo *config.Topology, m *metrics.Registry) (*monitor.Sampler[Job], func(), error) {
	noop := func() {}
	if topo.Monitor == nil && r.env.RedisAddr == "" {
		return nil, noop, nil
	}

	mcfg := monitor.DefaultConfig()
	mcfg.Logger = r.logger
	mcfg.Metrics = m
	if topo.Monitor != nil {
		if topo.Monitor.Schedule != "" {
			mcfg.Schedule = topo.Monitor.Schedule
		}
		mcfg.Policy = monitor.DepthPolicy{High: topo.Monitor.High, Low: topo.Monitor.Low}
	}

	closeFn := noop
	if r.env.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: r.env.RedisAddr})
		mcfg.Publisher = monitor.NewRedisPublisher(client, r.env.RedisPrefix, r.env.SnapshotTTL)
		closeFn = func() { _ = client.Close() }
	}

	s, err := monitor.New[Job](h, mcfg)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return s, closeFn, nil
}

func newJobQueue(capacity int) (*queue.Queue[*pipeline.Envelope[Job]], error) {
	return queue.New[*pipeline.Envelope[Job]](capacity)
}
