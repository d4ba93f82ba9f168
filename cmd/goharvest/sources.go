package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/sources"
)

var (
	flagDomain         string
	flagCategory       string
	flagStatus         string
	flagIncludeRemoved bool
	flagJSON           bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and maintain the content source registry",
}

func sourcesFilter() sources.Filter {
	return sources.Filter{
		Domain:         flagDomain,
		Category:       flagCategory,
		Status:         content.SourceStatus(flagStatus),
		IncludeRemoved: flagIncludeRemoved,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Sources.List(cmd.Context(), sourcesFilter())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tDOMAIN\tTITLE")
		for _, src := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", src.ID, src.Status, src.Domain, src.Title)
		}
		return w.Flush()
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <source-id>",
	Short: "Mark a source removed (the record is retained)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Sources.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate [source-id ...]",
	Short: "Check record integrity for all or selected sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.Sources.Validate(cmd.Context(), args)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(issues)
		}
		if len(issues) == 0 {
			fmt.Println("all sources valid")
			return nil
		}
		for _, is := range issues {
			fmt.Printf("%s\t%s\t%s\n", is.SourceID, is.Field, is.Problem)
		}
		return fmt.Errorf("%d validation issues", len(issues))
	},
}

var sourcesHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe source URLs and update their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Sources.HealthCheck(cmd.Context(), sourcesFilter(), nil)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(results)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATE\tSTATUS\tLATENCY\tURL\tDETAIL")
		for _, res := range results {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", res.State, res.Status, res.Latency.Round(0), res.URL, res.Detail)
		}
		return w.Flush()
	},
}

var sourcesDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Detect likely duplicate sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.Sources.DetectDuplicates(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(groups)
		}
		if len(groups) == 0 {
			fmt.Println("no duplicates found")
			return nil
		}
		for i, g := range groups {
			fmt.Printf("group %d (score %.2f, %s):\n", i+1, g.Score, g.Reason)
			for _, id := range g.SourceIDs {
				fmt.Printf("  %s\n", id)
			}
		}
		return nil
	},
}

var sourcesImportCmd = &cobra.Command{
	Use:   "import <spreadsheet.xlsx>",
	Short: "Register sources listed in a spreadsheet without fetching them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sources.ImportExcel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(report)
		}
		fmt.Printf("added %d, duplicates %d, errors %d\n",
			len(report.Added), len(report.Duplicates), len(report.Errors))
		for _, re := range report.Errors {
			fmt.Printf("  row %d: %s\n", re.Row, re.Problem)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd, sourcesRemoveCmd, sourcesValidateCmd,
		sourcesHealthCmd, sourcesDuplicatesCmd, sourcesImportCmd)

	pf := sourcesCmd.PersistentFlags()
	pf.StringVar(&flagDomain, "domain", "", "Filter by domain")
	pf.StringVar(&flagCategory, "category", "", "Filter by category")
	pf.StringVar(&flagStatus, "status", "", "Filter by status (active, updated, error, removed)")
	pf.BoolVar(&flagIncludeRemoved, "include-removed", false, "Include removed sources")
	pf.BoolVar(&flagJSON, "json", false, "Print JSON instead of a table")
}
