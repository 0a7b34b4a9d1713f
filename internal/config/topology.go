package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/common/validation"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// Topology shapes.
const (
	ShapeChain = "chain"
	ShapeMesh  = "mesh"
	ShapeCube  = "cube"
)

// Topology describes a topology to build.
//
//	name: orders
//	shape: mesh
//	queue_capacity: 16
//	rows: 2
//	row_length: 3
//	stages:
//	  - kind: sleeper
//	    address: "[0:1:0]"
//	    instances: 2
//	    max_instances: 4
//	    arg: 5ms
type Topology struct {
	Name          string `yaml:"name"`
	Shape         string `yaml:"shape"`
	QueueCapacity int    `yaml:"queue_capacity"`

	// Mesh dimensions.
	Rows      int `yaml:"rows"`
	RowLength int `yaml:"row_length"`

	// Cube dimensions.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`

	Stages  []Stage  `yaml:"stages"`
	Monitor *Monitor `yaml:"monitor"`
}

// Stage describes one node. For a chain the first stage is the head and
// Address is ignored; meshes and cubes require it.
type Stage struct {
	Kind          string `yaml:"kind"`
	Name          string `yaml:"name"`
	Address       string `yaml:"address"`
	Instances     int    `yaml:"instances"`
	MinInstances  int    `yaml:"min_instances"`
	MaxInstances  int    `yaml:"max_instances"`
	QueueCapacity int    `yaml:"queue_capacity"`
	Arg           any    `yaml:"arg"`
}

// Monitor enables depth-based scaling while the topology runs.
type Monitor struct {
	Schedule string  `yaml:"schedule"`
	High     float64 `yaml:"high"`
	Low      float64 `yaml:"low"`
}

// LoadTopology reads and validates a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes and validates a YAML topology. Unknown keys are
// rejected.
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks shape, dimensions and stage addresses.
func (t *Topology) Validate() error {
	if t.Name == "" {
		t.Name = "pipeline"
	}
	if t.QueueCapacity <= 0 {
		t.QueueCapacity = 16
	}
	if len(t.Stages) == 0 {
		return errors.NewValidationError("config", "stages", 0, "must list at least one stage")
	}

	var bounds topology.Address
	switch t.Shape {
	case ShapeChain, "":
		t.Shape = ShapeChain
		return t.validateStages(nil)
	case ShapeMesh:
		if t.Rows <= 0 || t.RowLength <= 0 {
			return errors.NewValidationError("config", "rows/row_length", [2]int{t.Rows, t.RowLength}, "must be positive")
		}
		bounds = topology.Address{X: uint(t.Rows), Y: uint(t.RowLength), Z: 1}
	case ShapeCube:
		if t.Width <= 0 || t.Height <= 0 || t.Depth <= 0 {
			return errors.NewValidationError("config", "width/height/depth", [3]int{t.Width, t.Height, t.Depth}, "must be positive")
		}
		bounds = topology.Address{X: uint(t.Width), Y: uint(t.Height), Z: uint(t.Depth)}
	default:
		return errors.NewValidationError("config", "shape", t.Shape, "unknown shape").
			WithHint("use chain, mesh or cube")
	}
	return t.validateStages(&bounds)
}

func (t *Topology) validateStages(bounds *topology.Address) error {
	seen := make(map[topology.Address]bool)
	for i := range t.Stages {
		s := &t.Stages[i]
		field := fmt.Sprintf("stages[%d]", i)
		if err := validation.ValidateNotEmpty("config", field+".kind", s.Kind); err != nil {
			return err
		}
		if s.Instances < 0 || s.MinInstances < 0 || s.MaxInstances < 0 {
			return errors.NewValidationError("config", field+".instances", s.Instances, "counts cannot be negative")
		}
		if bounds == nil {
			continue
		}

		addr, err := s.Addr()
		if err != nil {
			return errors.NewValidationError("config", field+".address", s.Address, err.Error())
		}
		if addr.X >= bounds.X || addr.Y >= bounds.Y || addr.Z >= bounds.Z {
			return errors.NewValidationError("config", field+".address", s.Address, "outside the topology")
		}
		if seen[addr] {
			return errors.NewValidationError("config", field+".address", s.Address, "listed twice")
		}
		seen[addr] = true
	}
	return nil
}

// Addr parses the stage address.
func (s Stage) Addr() (topology.Address, error) {
	if s.Address == "" {
		return topology.Address{}, fmt.Errorf("address is required")
	}
	return topology.ParseAddress(s.Address)
}
