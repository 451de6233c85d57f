// Package testsupport provides shared helpers for package tests: temp-dir
// configs and pre-opened stores with cleanup registered.
package testsupport

import (
	"path/filepath"
	"testing"

	"calldesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMinJobConfidence overrides the job-creation confidence floor.
func WithMinJobConfidence(value float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Extraction.MinJobConfidence = value
	}
}

// WithNameThreshold overrides the customer-match name similarity threshold.
func WithNameThreshold(value float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Matching.NameThreshold = value
	}
}
