// Package flow defines the boundary to the pipeline-wide coordinator: the
// collaborator that accumulates tagged stage results and learns when the
// whole pipeline has finished.
package flow

import "sync"

// Coordinator receives accumulated results and the end-of-pipeline signal
// from phase processes. Implementations must be safe for concurrent use;
// every partition of every accumulating stage calls Results independently.
type Coordinator interface {
	// Results reports one output produced by the stage identified by
	// stageID.
	Results(stageID string, value any)

	// Complete signals that the terminal stage has propagated completion:
	// no further results will arrive.
	Complete()
}

// Collector is an in-process Coordinator that records results per stage and
// closes its Done channel on completion. It backs the CLI runner and the
// test suites.
type Collector struct {
	mu      sync.Mutex
	results map[string][]any
	done    chan struct{}
	once    sync.Once
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		results: make(map[string][]any),
		done:    make(chan struct{}),
	}
}

// Results implements Coordinator.
func (c *Collector) Results(stageID string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[stageID] = append(c.results[stageID], value)
}

// Complete implements Coordinator. Repeat calls are harmless.
func (c *Collector) Complete() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once Complete has been called.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// StageResults returns a copy of the values accumulated for one stage, in
// arrival order.
func (c *Collector) StageResults(stageID string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.results[stageID]))
	copy(out, c.results[stageID])
	return out
}

// Snapshot returns a copy of everything accumulated so far, keyed by stage.
func (c *Collector) Snapshot() map[string][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]any, len(c.results))
	for id, vals := range c.results {
		cp := make([]any, len(vals))
		copy(cp, vals)
		out[id] = cp
	}
	return out
}
