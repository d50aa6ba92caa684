package config

import (
	"context"
	"time"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads pipeline definitions from the given paths and translates
	// them into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified, format-agnostic representation of one pipeline
// definition.
type Model struct {
	Flow   *Flow
	Stages []*Stage
}

// Flow carries the pipeline-wide settings.
type Flow struct {
	Name string
	// Timeout is the default idle timeout applied to every stage that does
	// not set its own.
	Timeout time.Duration
}

// Stage is the format-agnostic representation of a `stage` block.
type Stage struct {
	// Name identifies the stage; accumulated results are tagged with it.
	Name string
	// Callback names the registered stage module that runs this stage.
	Callback string
	// Partitions is the number of parallel processes for this stage.
	Partitions int
	// Converge marks the stage for the peer-convergence handshake. Required
	// when Partitions > 1 so completion accounting stays correct.
	Converge bool
	// Accumulate reports the stage's outputs to the flow coordinator.
	Accumulate bool
	// Next names the downstream stage whose partitions receive this
	// stage's outputs. Empty means terminal stage.
	Next string
	// Timeout overrides the flow-wide idle timeout for this stage.
	Timeout time.Duration
	// Arguments is handed to the stage callback's Init.
	Arguments map[string]any
}

// StageByName returns the named stage, or nil.
func (m *Model) StageByName(name string) *Stage {
	for _, s := range m.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}
