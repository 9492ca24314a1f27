// Command verify-migration compares the legacy export with the output of
// migrate-db and prints a report of count drift and sampled field mismatches.
// It never modifies either file.
//
// Usage: go run ./cmd/verify-migration [--legacy db_export.json] [--optimized db_optimized.json] [--json] [--fail-exit]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guanke/papaya-admin/internal/config"
	"github.com/guanke/papaya-admin/internal/logger"
	"github.com/guanke/papaya-admin/internal/pipeline"
	"github.com/guanke/papaya-admin/internal/verify"
)

const (
	exitFatal  = 1
	exitFailed = 2
)

// exitError carries the process exit status out of the command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var errVerificationFailed = errors.New("verification failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	stop()
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(exitFatal)
}

func newRootCmd() *cobra.Command {
	var (
		legacyPath, optimizedPath string
		jsonMode, failExit        bool
	)

	cmd := &cobra.Command{
		Use:           "verify-migration",
		Short:         "Cross-check the optimized export against the legacy export",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("load config", "error", err)
				return err
			}
			// Keep stdout clean for the JSON report.
			console := cmd.OutOrStdout()
			if jsonMode {
				console = cmd.ErrOrStderr()
			}
			logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Console: console})

			if legacyPath == "" {
				legacyPath = cfg.LegacyFile
			}
			if optimizedPath == "" {
				optimizedPath = cfg.OptimizedFile
			}

			res, err := pipeline.Verify(legacyPath, optimizedPath, verify.Options{UserCountTolerance: cfg.UserCountTolerance})
			if errors.Is(err, pipeline.ErrOptimizedMissing) {
				fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %s not found. Run 'migrate-db' first.\n", optimizedPath)
				return &exitError{code: exitFatal, err: err}
			}
			if err != nil {
				slog.Error("verification aborted", "error", err)
				return err
			}

			if jsonMode {
				err = res.Report.WriteJSON(cmd.OutOrStdout())
			} else {
				err = res.Report.WriteText(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			pub, err := pipeline.NewPublisher(cfg)
			if err != nil {
				slog.Error("init publisher", "error", err)
			} else {
				defer pub.Close()
				if err := pub.PublishVerification(cmd.Context(), res); err != nil {
					slog.Error("publish verification failed", "error", err)
				}
			}

			if failExit && !res.Report.Passed {
				return &exitError{code: exitFailed, err: errVerificationFailed}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&legacyPath, "legacy", "", "legacy export (default $LEGACY_FILE or db_export.json)")
	cmd.Flags().StringVar(&optimizedPath, "optimized", "", "optimized export (default $OPTIMIZED_FILE or db_optimized.json)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&failExit, "fail-exit", false, "exit with status 2 when verification finds errors")
	return cmd
}
