// Package config carries the run-level knobs for a validation run. Values
// are passed explicitly into the engine and aggregator so independent
// concurrent runs cannot interfere through ambient state.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names honored by FromEnv.
const (
	EnvChunkSize     = "QUAP_CHUNK_SIZE"
	EnvMaxViolations = "QUAP_MAX_VIOLATIONS"
)

// Options configures one validation run.
type Options struct {
	// ChunkSize bounds the number of rows pulled per adapter chunk.
	ChunkSize int
	// MaxStoredViolations caps the violation sample retained verbatim;
	// counts stay exact beyond it.
	MaxStoredViolations int
}

// Defaults returns the standard run options.
func Defaults() Options {
	return Options{
		ChunkSize:           50000,
		MaxStoredViolations: 2000,
	}
}

// FromEnv overlays environment overrides onto the defaults.
func FromEnv() (Options, error) {
	opts := Defaults()
	if v := os.Getenv(EnvChunkSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid %s value %q", EnvChunkSize, v)
		}
		opts.ChunkSize = n
	}
	if v := os.Getenv(EnvMaxViolations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid %s value %q", EnvMaxViolations, v)
		}
		opts.MaxStoredViolations = n
	}
	return opts, nil
}

// Validate checks option sanity before a run starts.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.MaxStoredViolations <= 0 {
		return fmt.Errorf("violation cap must be positive, got %d", o.MaxStoredViolations)
	}
	return nil
}
