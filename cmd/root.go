// Package cmd defines and implements the CLI commands for the
// prospector executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prospector",
		Short: "Batch enrichment pipeline for the provider registry",
		Long: `prospector crawls every (trade, city) combination through a rendering
proxy, extracts business listings from the returned markup, matches them
against the provider registry, and writes phone, rating, and website
enrichment at most once per provider per run. Interrupted runs resume
from the checkpoint file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads PROSPECTOR_* environment)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "prospector: %v\n", err)
		os.Exit(1)
	}
}
