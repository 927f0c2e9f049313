// Package cmd defines the breachwatch command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/app"
	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
	"github.com/JakeFAU/hhs-breach-watch/internal/config"
	"github.com/JakeFAU/hhs-breach-watch/internal/logging"
	"github.com/JakeFAU/hhs-breach-watch/internal/metrics"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to avoid real services.
var newApp = func(ctx context.Context, cfgFile string) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync() //nolint:errcheck // best effort before exit
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "breachwatch",
		Short: "Collects and serves the HHS OCR breach report.",
		Long: `breachwatch downloads the archived and currently-under-investigation
breach reports from the HHS Office for Civil Rights portal with a headless
browser, loads them into Postgres, and serves them over a small JSON API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newCollectCmd(),
		newIngestCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "breachwatch:", err)
		return 1
	}
	return 0
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

func addCategoryFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "category", "all", "report category: archive, current or all")
}

func logResults(logger *zap.Logger, results []breach.CollectionResult) {
	for _, r := range results {
		logger.Info("category result",
			zap.String("category", r.Category.String()),
			zap.String("outcome", r.Outcome),
			zap.Int64("rows", r.Rows),
			zap.String("report", r.ReportPath),
		)
	}
}
