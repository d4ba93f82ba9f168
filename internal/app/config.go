// Package app wires the acquisition pipeline from configuration:
// flags take precedence over environment variables, which take
// precedence over the config file, which takes precedence over
// built-in defaults.
package app

import (
	"errors"
	"time"

	"github.com/hyperifyio/goharvest/internal/sources"
)

// Config holds runtime configuration for the pipeline.
type Config struct {
	// Cache
	CacheDir string
	CacheTTL time.Duration

	// Source registry database. Empty means in-memory.
	DBPath string

	// Fetch
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	UserAgent   string
	MaxBodySize int64

	// Batch
	Window int

	// Duplicate detection
	Weights sources.SimilarityWeights

	// Behavior
	Verbose      bool
	DebugVerbose bool
}

// Defaults used when neither flags, env, nor file config set a value.
const (
	// The registry database lives outside the cache dir so clearing the
	// cache never drops source records.
	DefaultCacheDir = ".goharvest-cache"
	DefaultDBPath   = ".goharvest-sources.db"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		CacheDir: DefaultCacheDir,
		DBPath:   DefaultDBPath,
		Weights:  sources.DefaultWeights(),
	}
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if cfg.CacheDir == "" {
		return errors.New("config: cache dir is required")
	}
	if cfg.Retries < -1 {
		return errors.New("config: retries must be -1, 0, or positive")
	}
	if cfg.Window < 0 {
		return errors.New("config: negative batch window is not allowed")
	}
	if cfg.Weights.Threshold < 0 || cfg.Weights.Threshold > 1 {
		return errors.New("config: similarity threshold must be within [0,1]")
	}
	return nil
}
