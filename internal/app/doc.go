// Package app wires the phasegrid application together: logger setup,
// pipeline definition loading, stage module registration, pipeline
// construction and feeding, and the optional health/metrics HTTP server.
package app
