package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool surface over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		log.Info().Msg("serving MCP on stdio")
		return a.Tools.Serve(cmd.Context(), "goharvest", "1.0.0")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
