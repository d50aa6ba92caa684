// Package metrics implements the phase.Stats hook on top of a prometheus
// registry, giving every stage labeled counters for dispatched inputs,
// routed outputs, and backpressure engagements.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats collects per-stage counters. It satisfies phase.Stats and is safe
// for concurrent use.
type Stats struct {
	registry     *prometheus.Registry
	inputs       *prometheus.CounterVec
	outputs      *prometheus.CounterVec
	backpressure *prometheus.CounterVec
}

// New creates a Stats backed by its own prometheus registry.
func New() *Stats {
	registry := prometheus.NewRegistry()

	s := &Stats{
		registry: registry,
		inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phasegrid_inputs_total",
			Help: "Items dispatched to stage callbacks.",
		}, []string{"stage"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phasegrid_outputs_total",
			Help: "Outputs routed downstream or to a convergence leader.",
		}, []string{"stage"}),
		backpressure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phasegrid_backpressure_engaged_total",
			Help: "Sampling windows that switched delivery to blocking mode.",
		}, []string{"stage"}),
	}
	registry.MustRegister(s.inputs, s.outputs, s.backpressure)
	return s
}

// InputHandled implements phase.Stats.
func (s *Stats) InputHandled(stageID string) {
	s.inputs.WithLabelValues(stageID).Inc()
}

// OutputRouted implements phase.Stats.
func (s *Stats) OutputRouted(stageID string) {
	s.outputs.WithLabelValues(stageID).Inc()
}

// BackpressureEngaged implements phase.Stats.
func (s *Stats) BackpressureEngaged(stageID string) {
	s.backpressure.WithLabelValues(stageID).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
