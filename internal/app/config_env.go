package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from GOHARVEST_*
// environment variables. Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir {
		if v := os.Getenv("GOHARVEST_CACHE_DIR"); v != "" {
			cfg.CacheDir = v
		}
	}
	if cfg.CacheTTL == 0 {
		if d, ok := envDuration("GOHARVEST_CACHE_TTL"); ok {
			cfg.CacheTTL = d
		}
	}
	if cfg.DBPath == "" || cfg.DBPath == DefaultDBPath {
		if v := os.Getenv("GOHARVEST_DB"); v != "" {
			cfg.DBPath = v
		}
	}

	if cfg.Timeout == 0 {
		if d, ok := envDuration("GOHARVEST_TIMEOUT"); ok {
			cfg.Timeout = d
		}
	}
	if cfg.Retries == 0 {
		if n, ok := envInt("GOHARVEST_RETRIES"); ok {
			cfg.Retries = n
		}
	}
	if cfg.BackoffBase == 0 {
		if d, ok := envDuration("GOHARVEST_BACKOFF"); ok {
			cfg.BackoffBase = d
		}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("GOHARVEST_UA")
	}
	if cfg.Window == 0 {
		if n, ok := envInt("GOHARVEST_WINDOW"); ok && n > 0 {
			cfg.Window = n
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.Verbose, "GOHARVEST_VERBOSE")
	setBool(&cfg.DebugVerbose, "GOHARVEST_DEBUG")
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
