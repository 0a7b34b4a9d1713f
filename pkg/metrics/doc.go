// Package metrics provides Prometheus instrumentation for pipexec engines.
//
// # Overview
//
// A Registry groups the collectors an engine updates while it runs:
//   - per-node throughput (envelopes processed, Run latency)
//   - stage failures by lifecycle phase (init, run, end, clone)
//   - scaling commands consumed, by direction and outcome
//   - live instance counts and input queue depth per node
//   - routing drops and error-sink overflow
//
// # Quick Start
//
// Hand a registry to the engine through its configuration:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//	chain, err := pipeline.NewChainWithConfig(pipeline.Config{
//		Name:    "ingest",
//		Metrics: reg,
//	}, head, in, out, 1, nil)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9100", nil))
//
// # Available Metrics
//
//   - pipexec_node_envelopes_processed_total
//   - pipexec_node_stage_duration_seconds
//   - pipexec_node_stage_errors_total
//   - pipexec_node_scale_events_total
//   - pipexec_node_instances
//   - pipexec_queue_depth
//   - pipexec_queue_capacity
//   - pipexec_router_envelopes_dropped_total
//   - pipexec_engine_errors_dropped_total
//   - pipexec_monitor_samples_total
//
// # Labels
//
//   - topology: the engine name from its Config
//   - node: the node address, e.g. "[0:2:0]"
//   - phase: "init", "run", "end" or "clone"
//   - direction: "up" or "down"
//   - outcome: "applied", "capped" or "failed"
//   - reason: why an envelope was dropped, e.g. "unknown_address"
//
// # Runtime Control
//
// Components implementing Instrumentable can switch collection on and off:
//
//	engine.DisableMetrics()
//	engine.EnableMetrics(metrics.Config{Enabled: true, Registry: reg})
package metrics
