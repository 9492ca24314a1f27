// Package notify tells operators how a migration went, over Telegram and
// Discord.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Notifier delivers a plain-text message to some audience.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// Broadcast sends text through every notifier concurrently. Each failure is
// logged; the first one is returned after all notifiers finish.
func Broadcast(ctx context.Context, text string, notifiers ...Notifier) error {
	var g errgroup.Group
	for _, n := range notifiers {
		g.Go(func() error {
			if err := n.Notify(ctx, text); err != nil {
				slog.Error("notification failed", "notifier", n.Name(), "error", err)
				return err
			}
			slog.Debug("notification sent", "notifier", n.Name())
			return nil
		})
	}
	return g.Wait()
}
