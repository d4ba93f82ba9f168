// Command goharvest fetches web pages, normalizes them into typed
// content blocks, and maintains a deduplicated source registry.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goharvest/internal/app"
)

var (
	flagConfig   string
	flagCacheDir string
	flagCacheTTL time.Duration
	flagDB       string
	flagTimeout  time.Duration
	flagRetries  int
	flagBackoff  time.Duration
	flagUA       string
	flagWindow   int
	flagVerbose  bool
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "goharvest",
	Short: "Fetch web pages into normalized content blocks and manage content sources",
	Long: `goharvest is a content acquisition pipeline: it fetches URLs, extracts
the main content into typed blocks, caches results on disk, and keeps a
deduplicated registry of content sources.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		switch {
		case flagDebug:
			zerolog.SetGlobalLevel(zerolog.TraceLevel)
		case flagVerbose:
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return app.LoadEnvFiles(".env")
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to YAML or JSON config file")
	pf.StringVar(&flagCacheDir, "cache.dir", app.DefaultCacheDir, "Content cache directory")
	pf.DurationVar(&flagCacheTTL, "cache.ttl", 0, "Cache entry lifetime (e.g. 24h); 0 uses the built-in default")
	pf.StringVar(&flagDB, "db", app.DefaultDBPath, "Source registry database path; empty for in-memory")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Per-attempt fetch timeout")
	pf.IntVar(&flagRetries, "retries", 0, "Extra fetch attempts after the first; -1 disables retrying")
	pf.DurationVar(&flagBackoff, "backoff", 0, "Delay before the first retry; doubles per attempt")
	pf.StringVar(&flagUA, "ua", "", "Custom User-Agent for outbound requests")
	pf.IntVar(&flagWindow, "window", 0, "Batch concurrency window size")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")
	pf.BoolVar(&flagDebug, "debug-verbose", false, "Trace-level logging")
}

// buildConfig layers flags over env over file config over defaults.
func buildConfig() (app.Config, error) {
	cfg := app.DefaultConfig()
	cfg.CacheDir = flagCacheDir
	cfg.CacheTTL = flagCacheTTL
	cfg.DBPath = flagDB
	cfg.Timeout = flagTimeout
	cfg.Retries = flagRetries
	cfg.BackoffBase = flagBackoff
	cfg.UserAgent = flagUA
	cfg.Window = flagWindow
	cfg.Verbose = flagVerbose
	cfg.DebugVerbose = flagDebug

	app.ApplyEnvToConfig(&cfg)
	if flagConfig != "" {
		fc, err := app.LoadConfigFile(flagConfig)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", flagConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	return cfg, app.ValidateConfig(cfg)
}

func newApp() (*app.App, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
