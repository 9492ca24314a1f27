// Package migrate restructures the legacy connections-keyed export into the
// category-sharded layout: users, user_tasks, user_farming and user_history.
package migrate

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/guanke/papaya-admin/internal/export"
)

// Options controls a migration run.
type Options struct {
	// Now is the batch timestamp written as migratedAt on every user.
	// Zero means the current time.
	Now time.Time
	// Location is the time zone history shards are computed in. Nil means UTC.
	Location *time.Location
}

// Migrate builds the optimized document from legacy in two passes, first
// over connections and then over history.
func Migrate(legacy *export.Legacy, opts Options) (*export.Optimized, Summary, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	b := NewBuilder(now, opts.Location)

	slog.Info("starting migration", "users", len(legacy.Connections))
	for _, uid := range slices.Sorted(maps.Keys(legacy.Connections)) {
		b.AddUser(uid, legacy.Connections[uid])
	}

	slog.Info("migrating history", "users", len(legacy.History))
	for _, uid := range slices.Sorted(maps.Keys(legacy.History)) {
		b.AddHistory(uid, legacy.History[uid])
	}

	return b.Build()
}
