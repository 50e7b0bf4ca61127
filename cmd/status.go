package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/checkpoint"
	"github.com/quartierlabs/prospector/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print checkpoint progress without starting a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := checkpoint.NewStore(cfg.Paths.Checkpoint)
			if err != nil {
				return fmt.Errorf("open checkpoint: %w", err)
			}
			cp, err := store.Load()
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}

			total := catalog.Total()
			done := len(cp.CompletedKeys)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "combos:     %d/%d (%.1f%%)\n", done, total, 100*float64(done)/float64(total))
			fmt.Fprintf(out, "listings:   %d\n", cp.Counters.ListingsFound)
			fmt.Fprintf(out, "phones:     %d\n", cp.Counters.PhonesAdded)
			fmt.Fprintf(out, "ratings:    %d\n", cp.Counters.RatingsAdded)
			fmt.Fprintf(out, "websites:   %d\n", cp.Counters.WebsitesAdded)
			fmt.Fprintf(out, "duplicates: %d\n", cp.Counters.DuplicatesSkipped)
			fmt.Fprintf(out, "errors:     %d\n", cp.Counters.Errors)
			fmt.Fprintf(out, "credits:    %d\n", cp.Counters.CreditsUsed)
			return nil
		},
	}
}
