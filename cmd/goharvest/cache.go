package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goharvest/internal/cache"
)

var flagMaxAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the on-disk content cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		if err := cache.ClearDir(cfg.CacheDir); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired entries, or entries older than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		var removed int
		if flagMaxAge > 0 {
			removed, err = cache.PurgeByAge(cfg.CacheDir, flagMaxAge)
		} else {
			removed, err = cache.PurgeExpired(cfg.CacheDir)
		}
		if err != nil {
			return err
		}
		fmt.Printf("purged %d entries\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd, cachePurgeCmd)
	cachePurgeCmd.Flags().DurationVar(&flagMaxAge, "max-age", 0, "Remove entries written longer ago than this (e.g. 72h)")
}
