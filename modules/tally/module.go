// Package tally implements the counting reduce stage. Each partition keeps
// a token→count map; partitions of a converging stage emit their partial
// map when their inputs finish, and the leader merges those partials into
// the final totals before emitting them downstream.
package tally

import (
	"time"

	"github.com/vk/phasegrid/internal/registry"
	"github.com/vk/phasegrid/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the callback factory with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCallback("tally", func() stage.Callback { return &callback{} })
}

type callback struct {
	stage.Base
}

// Init starts with an empty tally.
func (c *callback) Init(args map[string]any) (any, error) {
	return map[string]int{}, nil
}

// HandleInput merges one item into the tally. Strings count once, string
// batches count each token, and count maps (the partials forwarded by
// converging partitions) merge entry-wise.
func (c *callback) HandleInput(item any, state any, timeout time.Duration) stage.Result {
	counts := state.(map[string]int)

	switch v := item.(type) {
	case string:
		counts[v]++
	case []string:
		for _, token := range v {
			counts[token]++
		}
	case []any:
		for _, raw := range v {
			if token, ok := raw.(string); ok {
				counts[token]++
			}
		}
	case map[string]int:
		for token, n := range v {
			counts[token] += n
		}
	}
	return stage.Continue(counts)
}

// HandleInputsDone emits the accumulated tally. For a non-leader partition
// the process forwards it to the leader; for the leader (or a
// non-converging stage) it becomes the stage's final output.
func (c *callback) HandleInputsDone(state any) stage.Result {
	counts := state.(map[string]int)
	out := make(map[string]int, len(counts))
	for token, n := range counts {
		out[token] = n
	}
	return stage.Emit(counts, out)
}
