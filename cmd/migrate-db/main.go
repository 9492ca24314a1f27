// Command migrate-db restructures the legacy connections-keyed database export
// into the users / user_tasks / user_farming / user_history layout.
// This is a one-time migration tool; it overwrites the output on every run.
//
// Usage: go run ./cmd/migrate-db [--input db_export.json] [--output db_optimized.json]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guanke/papaya-admin/internal/config"
	"github.com/guanke/papaya-admin/internal/logger"
	"github.com/guanke/papaya-admin/internal/migrate"
	"github.com/guanke/papaya-admin/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:           "migrate-db",
		Short:         "Restructure the legacy export into category-sharded collections",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("load config", "error", err)
				return err
			}
			logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

			if input == "" {
				input = cfg.LegacyFile
			}
			if output == "" {
				output = cfg.OptimizedFile
			}

			res, err := pipeline.Migrate(input, output, migrate.Options{Location: cfg.ShardLocation})
			if err != nil {
				slog.Error("migration failed", "error", err)
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migration complete. Optimized DB written to %s\n", output)

			pub, err := pipeline.NewPublisher(cfg)
			if err != nil {
				slog.Error("init publisher", "error", err)
				return nil
			}
			defer pub.Close()
			if err := pub.PublishMigration(cmd.Context(), res); err != nil {
				slog.Error("publish migration failed", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "legacy export to read (default $LEGACY_FILE or db_export.json)")
	cmd.Flags().StringVar(&output, "output", "", "optimized export to write (default $OPTIMIZED_FILE or db_optimized.json)")
	return cmd
}
