package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/guanke/papaya-admin/internal/config"
	"github.com/guanke/papaya-admin/internal/logger"
	"github.com/guanke/papaya-admin/internal/migrate"
	"github.com/guanke/papaya-admin/internal/pipeline"
	"github.com/guanke/papaya-admin/internal/verify"
)

// papaya-admin runs the whole migration in one go: migrate, then archive the
// output while verifying it, then report.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	pub, err := pipeline.NewPublisher(cfg)
	if err != nil {
		slog.Error("init publisher", "error", err)
		return 1
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Migrate(cfg.LegacyFile, cfg.OptimizedFile, migrate.Options{Location: cfg.ShardLocation})
	if err != nil {
		slog.Error("migration failed", "error", err)
		return 1
	}

	var report *pipeline.VerifyResult
	g, gctx := errgroup.WithContext(ctx)

	// Archive and ledger
	g.Go(func() error {
		return pub.PublishMigration(gctx, res)
	})

	// Verify
	g.Go(func() error {
		vr, err := pipeline.Verify(cfg.LegacyFile, cfg.OptimizedFile, verify.Options{UserCountTolerance: cfg.UserCountTolerance})
		if err != nil {
			return err
		}
		report = vr
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("pipeline stopped", "error", err)
		return 1
	}

	if err := report.Report.WriteText(os.Stdout); err != nil {
		slog.Error("write report", "error", err)
	}
	if err := pub.PublishVerification(ctx, report); err != nil {
		slog.Error("publish verification failed", "error", err)
	}
	if !report.Report.Passed {
		return 2
	}
	return 0
}
