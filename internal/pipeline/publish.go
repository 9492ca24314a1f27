package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/guanke/papaya-admin/internal/config"
	"github.com/guanke/papaya-admin/internal/notify"
	"github.com/guanke/papaya-admin/internal/r2"
	"github.com/guanke/papaya-admin/internal/store"
)

// Archiver stores an artifact and returns where it can be found.
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Ledger records runs.
type Ledger interface {
	SaveRun(run *store.Run) error
}

// Publisher sends run results to whichever sinks are configured. A zero
// Publisher does nothing.
type Publisher struct {
	Archive   Archiver
	Ledger    Ledger
	Notifiers []notify.Notifier

	closers []func() error
}

// NewPublisher wires the sinks enabled in cfg. Sinks that fail to start are
// logged and left out; only a ledger that cannot be opened is an error.
func NewPublisher(cfg *config.Config) (*Publisher, error) {
	p := &Publisher{}

	if cfg.LedgerFile != "" {
		st, err := store.New(cfg.LedgerFile)
		if err != nil {
			return nil, fmt.Errorf("open ledger %s: %w", cfg.LedgerFile, err)
		}
		p.Ledger = st
		p.closers = append(p.closers, st.Close)
	}

	if cfg.ArchiveEnabled() {
		client, err := r2.New(cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName, cfg.R2PublicURL)
		if err != nil {
			slog.Error("failed to init R2", "error", err)
		} else {
			p.Archive = client
		}
	}

	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.BotToken, cfg.AdminIDs)
		if err != nil {
			slog.Error("failed to init telegram notifier", "error", err)
		} else {
			p.Notifiers = append(p.Notifiers, tg)
		}
	}

	if cfg.DiscordEnabled() {
		dc, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			slog.Error("failed to init discord notifier", "error", err)
		} else {
			p.Notifiers = append(p.Notifiers, dc)
		}
	}

	return p, nil
}

// Close releases the ledger.
func (p *Publisher) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ArchiveKey is the object key a run's output is archived under.
func ArchiveKey(runID, output string) string {
	return fmt.Sprintf("migrations/%s/%s", runID, filepath.Base(output))
}

// PublishMigration archives the output and then records the run, so the
// ledger entry carries the archive location.
func (p *Publisher) PublishMigration(ctx context.Context, res *MigrateResult) error {
	run := &store.Run{
		ID:         res.RunID,
		Kind:       store.KindMigrate,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Input:      res.Input,
		Output:     res.Output,
		Checksum:   res.Checksum,
		Passed:     true,
		Details:    mustJSON(res.Summary),
	}

	if p.Archive != nil {
		url, err := p.Archive.Upload(ctx, ArchiveKey(res.RunID, res.Output), res.Data, "application/json")
		if err != nil {
			return fmt.Errorf("archive output: %w", err)
		}
		run.ArchiveURL = url
		slog.Info("optimized export archived", "location", url)
	}

	if p.Ledger != nil {
		if err := p.Ledger.SaveRun(run); err != nil {
			return fmt.Errorf("record migration run: %w", err)
		}
	}
	return nil
}

// PublishVerification records the run and notifies operators concurrently.
func (p *Publisher) PublishVerification(ctx context.Context, res *VerifyResult) error {
	var g errgroup.Group

	if p.Ledger != nil {
		g.Go(func() error {
			run := &store.Run{
				ID:         res.RunID,
				Kind:       store.KindVerify,
				StartedAt:  res.StartedAt,
				FinishedAt: res.FinishedAt,
				Input:      res.Legacy,
				Output:     res.Optimized,
				Passed:     res.Report.Passed,
				Details:    mustJSON(res.Report),
			}
			if err := p.Ledger.SaveRun(run); err != nil {
				return fmt.Errorf("record verification run: %w", err)
			}
			return nil
		})
	}

	if len(p.Notifiers) > 0 {
		g.Go(func() error {
			return notify.Broadcast(ctx, res.Report.Headline(), p.Notifiers...)
		})
	}

	return g.Wait()
}
