package main

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/internal/config"
	"github.com/vnykmshr/pipexec/pkg/metrics"
	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/pipeline/stages"
)

// Job is the payload every envelope carries through a CLI topology.
type Job = int

// stageFactories maps the kind names accepted in topology files to stages.
var stageFactories = map[string]func() pipeline.Stage[Job]{
	"passthrough":  func() pipeline.Stage[Job] { return pipeline.Passthrough[Job]{} },
	"sleeper":      func() pipeline.Stage[Job] { return stages.NewSleeper[Job]() },
	"backpressure": func() pipeline.Stage[Job] { return stages.NewBackpressure[Job]() },
	"throttle":     func() pipeline.Stage[Job] { return stages.NewThrottle[Job]() },
	"indexer":      func() pipeline.Stage[Job] { return stages.NewIndexer[Job]() },
	"adder":        func() pipeline.Stage[Job] { return stages.NewAdder[Job]() },
}

func newStage(s config.Stage) (pipeline.Stage[Job], any, error) {
	factory, ok := stageFactories[s.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown stage kind %q", s.Kind)
	}
	arg := s.Arg
	if m, ok := arg.(map[string]any); ok {
		switch s.Kind {
		case "backpressure":
			arg = backpressureConfig(m)
		case "throttle":
			arg = throttleConfig(m)
		}
	}
	return factory(), arg, nil
}

func backpressureConfig(m map[string]any) stages.BackpressureConfig {
	cfg := stages.DefaultBackpressureConfig()
	if v, ok := m["high"].(int); ok {
		cfg.High = v
	}
	if v, ok := m["low"].(int); ok {
		cfg.Low = v
	}
	if v, ok := m["adaptive"].(bool); ok {
		cfg.Adaptive = v
	}
	return cfg
}

func throttleConfig(m map[string]any) stages.ThrottleConfig {
	cfg := stages.ThrottleConfig{Burst: 1}
	switch v := m["rate"].(type) {
	case int:
		cfg.Rate = float64(v)
	case float64:
		cfg.Rate = v
	}
	if v, ok := m["burst"].(int); ok {
		cfg.Burst = v
	}
	return cfg
}

func nodeConfig(s config.Stage, arg any) pipeline.NodeConfig {
	return pipeline.NodeConfig{
		Name:          s.Name,
		Instances:     s.Instances,
		InitArg:       arg,
		QueueCapacity: s.QueueCapacity,
		MinInstances:  s.MinInstances,
		MaxInstances:  s.MaxInstances,
	}
}

// topologyHandle is a built topology plus the way to feed it.
type topologyHandle struct {
	*pipeline.Engine[Job]
	push func(*pipeline.Envelope[Job]) error
}

func build(topo *config.Topology, logger *zap.Logger, errorBuffer int, m *metrics.Registry) (*topologyHandle, error) {
	cfg := pipeline.DefaultConfig()
	cfg.Name = topo.Name
	cfg.Logger = logger
	cfg.Metrics = m
	if errorBuffer > 0 {
		cfg.ErrorBuffer = errorBuffer
	}

	switch topo.Shape {
	case config.ShapeMesh:
		return buildMesh(cfg, topo)
	case config.ShapeCube:
		return buildCube(cfg, topo)
	default:
		return buildChain(cfg, topo)
	}
}

func buildChain(cfg pipeline.Config, topo *config.Topology) (*topologyHandle, error) {
	head := topo.Stages[0]
	in, err := newJobQueue(lo.CoalesceOrEmpty(head.QueueCapacity, topo.QueueCapacity))
	if err != nil {
		return nil, err
	}
	out, err := newJobQueue(topo.QueueCapacity)
	if err != nil {
		return nil, err
	}

	stage, arg, err := newStage(head)
	if err != nil {
		return nil, err
	}
	c, err := pipeline.NewChainWithHead(cfg, stage, in, out, nodeConfig(head, arg))
	if err != nil {
		return nil, err
	}

	for _, s := range topo.Stages[1:] {
		stage, arg, err := newStage(s)
		if err != nil {
			return nil, err
		}
		nc := nodeConfig(s, arg)
		nc.QueueCapacity = lo.CoalesceOrEmpty(s.QueueCapacity, topo.QueueCapacity)
		if _, err := c.AddStage(stage, nc); err != nil {
			return nil, err
		}
	}
	return &topologyHandle{Engine: c.Engine, push: in.Push}, nil
}

func buildMesh(cfg pipeline.Config, topo *config.Topology) (*topologyHandle, error) {
	m, err := pipeline.NewMeshWithConfig[Job](cfg, topo.Rows, topo.RowLength, topo.QueueCapacity)
	if err != nil {
		return nil, err
	}
	for _, s := range topo.Stages {
		addr, err := s.Addr()
		if err != nil {
			return nil, err
		}
		stage, arg, err := newStage(s)
		if err != nil {
			return nil, err
		}
		if _, err := m.AddStage(stage, int(addr.X), int(addr.Y), nodeConfig(s, arg)); err != nil {
			return nil, err
		}
	}

	d, err := pipeline.NewDistributor(m.Entries())
	if err != nil {
		return nil, err
	}
	return &topologyHandle{Engine: m.Engine, push: d.Push}, nil
}

func buildCube(cfg pipeline.Config, topo *config.Topology) (*topologyHandle, error) {
	c, err := pipeline.NewCubeWithConfig[Job](cfg, topo.Width, topo.Height, topo.Depth, topo.QueueCapacity)
	if err != nil {
		return nil, err
	}
	for _, s := range topo.Stages {
		addr, err := s.Addr()
		if err != nil {
			return nil, err
		}
		stage, arg, err := newStage(s)
		if err != nil {
			return nil, err
		}
		if _, err := c.AddStage(stage, int(addr.X), int(addr.Y), int(addr.Z), nodeConfig(s, arg)); err != nil {
			return nil, err
		}
	}

	d, err := pipeline.NewDistributor(c.Entries())
	if err != nil {
		return nil, err
	}
	return &topologyHandle{Engine: c.Engine, push: d.Push}, nil
}
