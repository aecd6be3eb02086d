// Package cmd defines the CLI commands for the ebay-scraper executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebay-scraper",
		Short: "Scrapes sold-item listings from marketplace search results",
		Long: `ebay-scraper crawls paginated sold-items search results for the
configured query terms, normalizes the listing fields and persists them
into a deduplicated relational store.`,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newScrapeCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
