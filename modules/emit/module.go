// Package emit implements a pass-through stage: every item is forwarded
// unchanged, optionally printed on the way. It is the usual terminal stage
// of a pipeline whose results are collected through accumulation.
package emit

import (
	"fmt"
	"sort"
	"time"

	"github.com/vk/phasegrid/internal/registry"
	"github.com/vk/phasegrid/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the callback factory with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCallback("emit", func() stage.Callback { return &callback{} })
}

type callback struct {
	stage.Base
}

type settings struct {
	print  bool
	prefix string
}

// Init reads the optional arguments: `print` (default false) and `prefix`
// prepended to every printed item.
func (c *callback) Init(args map[string]any) (any, error) {
	s := &settings{}
	if raw, ok := args["print"]; ok {
		p, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("emit: print must be a bool, got %v", raw)
		}
		s.print = p
	}
	if raw, ok := args["prefix"]; ok {
		prefix, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("emit: prefix must be a string, got %v", raw)
		}
		s.prefix = prefix
	}
	return s, nil
}

// HandleInput forwards the item unchanged.
func (c *callback) HandleInput(item any, state any, timeout time.Duration) stage.Result {
	s := state.(*settings)
	if s.print {
		printItem(s.prefix, item)
	}
	return stage.Emit(s, item)
}

// printItem renders maps with sorted keys so output stays deterministic.
func printItem(prefix string, item any) {
	if counts, ok := item.(map[string]int); ok {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s%s = %d\n", prefix, k, counts[k])
		}
		return
	}
	fmt.Printf("%s%v\n", prefix, item)
}
