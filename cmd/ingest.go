package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

func newIngestCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load reports already present in the download directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			categories, err := breach.ParseCategories(category)
			if err != nil {
				return err
			}
			c, err := a.Collector()
			if err != nil {
				return err
			}
			results, err := c.Ingest(cmd.Context(), categories...)
			logResults(a.Logger(), results)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			return nil
		},
	}
	addCategoryFlag(cmd, &category)
	return cmd
}
