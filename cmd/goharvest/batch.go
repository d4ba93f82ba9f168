package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goharvest/internal/batch"
)

var (
	flagURLFile string
	flagModule  string
)

var batchCmd = &cobra.Command{
	Use:   "batch [url ...]",
	Short: "Fetch many URLs concurrently and register each as a source",
	Long: `Batch fetches the given URLs in fixed-size concurrency windows and
registers each successful fetch as a content source. URLs may be passed
as arguments, read from a file with --file, or piped on stdin with
--file -. Individual failures never abort the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := append([]string(nil), args...)
		if flagURLFile != "" {
			fromFile, err := readURLList(flagURLFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs given; pass arguments or --file")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		job := a.Batch.Run(cmd.Context(), urls, batch.Options{
			Window: a.Config.Window,
			Module: flagModule,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return err
		}
		if job.Failed == job.Total {
			return fmt.Errorf("all %d URLs failed", job.Total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&flagURLFile, "file", "", "File with one URL per line, or - for stdin")
	batchCmd.Flags().StringVar(&flagModule, "module", "", "Module name recorded as a dependent of each source")
}

func readURLList(path string) ([]string, error) {
	var r *os.File
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
