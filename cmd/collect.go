package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

func newCollectCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Download the breach reports and load them",
		Long: `Opens a fresh browser per category, exports the report as CSV,
waits for the download to settle, then replaces that category's rows in
the store. A download that does not finish in time is reported, not fatal.`,
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
			results, err := c.Run(cmd.Context(), categories...)
			logResults(a.Logger(), results)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			return nil
		},
	}
	addCategoryFlag(cmd, &category)
	return cmd
}
