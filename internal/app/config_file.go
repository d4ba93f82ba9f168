package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goharvest/internal/sources"
)

// FileConfig represents the single-file configuration schema. Nested
// sections map naturally to flags and environment variables.
type FileConfig struct {
	Cache struct {
		Dir string        `yaml:"dir" json:"dir"`
		TTL time.Duration `yaml:"ttl" json:"ttl"`
	} `yaml:"cache" json:"cache"`

	DB struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"db" json:"db"`

	Fetch struct {
		Timeout      time.Duration `yaml:"timeout" json:"timeout"`
		Retries      *int          `yaml:"retries" json:"retries"`
		Backoff      time.Duration `yaml:"backoff" json:"backoff"`
		UA           string        `yaml:"ua" json:"ua"`
		MaxBodyBytes int64         `yaml:"maxBodyBytes" json:"maxBodyBytes"`
	} `yaml:"fetch" json:"fetch"`

	Batch struct {
		Window int `yaml:"window" json:"window"`
	} `yaml:"batch" json:"batch"`

	Similarity struct {
		URL            float64 `yaml:"url" json:"url"`
		TitleExact     float64 `yaml:"titleExact" json:"titleExact"`
		TitleSubstring float64 `yaml:"titleSubstring" json:"titleSubstring"`
		Domain         float64 `yaml:"domain" json:"domain"`
		ContentHash    float64 `yaml:"contentHash" json:"contentHash"`
		Threshold      float64 `yaml:"threshold" json:"threshold"`
	} `yaml:"similarity" json:"similarity"`

	Verbose      bool `yaml:"verbose" json:"verbose"`
	DebugVerbose bool `yaml:"debugVerbose" json:"debugVerbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields
// that are currently unset or still at their built-in default. Flags
// should already have been parsed; this lets file config supply defaults
// while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheTTL == 0 && fc.Cache.TTL > 0 {
		cfg.CacheTTL = fc.Cache.TTL
	}
	if (cfg.DBPath == "" || cfg.DBPath == DefaultDBPath) && fc.DB.Path != "" {
		cfg.DBPath = fc.DB.Path
	}

	if cfg.Timeout == 0 && fc.Fetch.Timeout > 0 {
		cfg.Timeout = fc.Fetch.Timeout
	}
	if cfg.Retries == 0 && fc.Fetch.Retries != nil {
		cfg.Retries = *fc.Fetch.Retries
	}
	if cfg.BackoffBase == 0 && fc.Fetch.Backoff > 0 {
		cfg.BackoffBase = fc.Fetch.Backoff
	}
	if cfg.UserAgent == "" && fc.Fetch.UA != "" {
		cfg.UserAgent = fc.Fetch.UA
	}
	if cfg.MaxBodySize == 0 && fc.Fetch.MaxBodyBytes > 0 {
		cfg.MaxBodySize = fc.Fetch.MaxBodyBytes
	}

	if cfg.Window == 0 && fc.Batch.Window > 0 {
		cfg.Window = fc.Batch.Window
	}

	applyWeight := func(dst *float64, def, v float64) {
		if (*dst == 0 || *dst == def) && v > 0 {
			*dst = v
		}
	}
	def := sources.DefaultWeights()
	applyWeight(&cfg.Weights.URL, def.URL, fc.Similarity.URL)
	applyWeight(&cfg.Weights.TitleExact, def.TitleExact, fc.Similarity.TitleExact)
	applyWeight(&cfg.Weights.TitleSubstring, def.TitleSubstring, fc.Similarity.TitleSubstring)
	applyWeight(&cfg.Weights.Domain, def.Domain, fc.Similarity.Domain)
	applyWeight(&cfg.Weights.ContentHash, def.ContentHash, fc.Similarity.ContentHash)
	applyWeight(&cfg.Weights.Threshold, def.Threshold, fc.Similarity.Threshold)

	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
	if !cfg.DebugVerbose && fc.DebugVerbose {
		cfg.DebugVerbose = true
	}
}
