package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/batch"
	"github.com/hyperifyio/goharvest/internal/cache"
	"github.com/hyperifyio/goharvest/internal/fetch"
	"github.com/hyperifyio/goharvest/internal/notify"
	"github.com/hyperifyio/goharvest/internal/sources"
	"github.com/hyperifyio/goharvest/internal/tools"
)

// App owns the assembled pipeline. Construct with New, release with
// Close.
type App struct {
	Config  Config
	Cache   *cache.ContentCache
	Fetcher *fetch.Fetcher
	Sources *sources.Registry
	Batch   *batch.Orchestrator
	Tools   *tools.Service
}

// New assembles the pipeline from a validated configuration.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	cc := &cache.ContentCache{Dir: cfg.CacheDir, TTL: cfg.CacheTTL}

	fetcher := fetch.New(cc, fetch.Options{
		Timeout:     cfg.Timeout,
		Retries:     cfg.Retries,
		BackoffBase: cfg.BackoffBase,
		UserAgent:   cfg.UserAgent,
		MaxBodySize: cfg.MaxBodySize,
	})

	reg, err := sources.Open(sources.Config{Path: cfg.DBPath, Weights: cfg.Weights})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	sink := notify.Log{}
	orch := batch.New(fetcher, reg, sink)

	app := &App{
		Config:  cfg,
		Cache:   cc,
		Fetcher: fetcher,
		Sources: reg,
		Batch:   orch,
		Tools: &tools.Service{
			Fetcher: fetcher,
			Sources: reg,
			Batch:   orch,
			Cache:   cc,
			Sink:    sink,
		},
	}
	log.Debug().Str("cache_dir", cfg.CacheDir).Str("db", cfg.DBPath).Msg("pipeline assembled")
	return app, nil
}

// Close releases the registry database.
func (a *App) Close() error {
	if a == nil || a.Sources == nil {
		return nil
	}
	return a.Sources.Close()
}
