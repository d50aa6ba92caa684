// Package config defines the format-agnostic configuration model for a
// pipeline, along with the Loader interface for reading it from a concrete
// format. The config.Model is the single source of truth for the builder:
// concrete implementations, such as HCL, live in separate packages.
package config
