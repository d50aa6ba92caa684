// Package registry provides the central "glue" for the stage module system.
//
// The Registry stores mappings between the callback names used in pipeline
// definitions (e.g. "tokenize") and the compiled Go factories producing the
// stage.Callback instances that implement them. Each partition gets its own
// callback instance, so factories must return fresh values.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/phasegrid/internal/stage"
)

// Module is the interface all built-in stage modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Factory produces one stage.Callback instance per partition.
type Factory func() stage.Callback

// Registry holds the registered stage callback factories for a single
// application instance.
type Registry struct {
	callbacks map[string]Factory
}

// New creates and initializes an empty Registry.
func New() *Registry {
	return &Registry{callbacks: make(map[string]Factory)}
}

// RegisterCallback registers a factory under a callback name. A duplicate
// name is a programmer error and panics, matching the fail-at-startup
// behavior of the rest of the wiring.
func (r *Registry) RegisterCallback(name string, factory Factory) {
	if _, exists := r.callbacks[name]; exists {
		panic(fmt.Sprintf("stage callback %q already registered", name))
	}
	slog.Debug("Registering stage callback.", "name", name)
	r.callbacks[name] = factory
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	factory, ok := r.callbacks[name]
	if !ok {
		return nil, fmt.Errorf("no stage callback registered under %q", name)
	}
	return factory, nil
}

// Names returns the registered callback names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.callbacks))
	for name := range r.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
