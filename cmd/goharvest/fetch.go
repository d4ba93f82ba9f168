package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goharvest/internal/fetch"
)

var (
	flagBypassCache bool
	flagMaxBlocks   int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch one URL and print the normalized content as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		wc := a.Fetcher.Fetch(cmd.Context(), args[0], fetch.Options{
			BypassCache: flagBypassCache,
			MaxBlocks:   flagMaxBlocks,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(wc); err != nil {
			return err
		}
		if wc.Error != nil {
			return fmt.Errorf("fetch %s: %s", args[0], wc.Error.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolVar(&flagBypassCache, "no-cache", false, "Fetch fresh even when a cached copy exists")
	fetchCmd.Flags().IntVar(&flagMaxBlocks, "max-blocks", 0, "Cap on extracted blocks, 0 for unlimited")
}
