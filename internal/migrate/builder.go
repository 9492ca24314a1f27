package migrate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/guanke/papaya-admin/internal/export"
)

// Outcome describes what happened to one legacy user record.
type Outcome int

const (
	Migrated Outcome = iota
	// SkippedEmpty is a record that is null or otherwise unset.
	SkippedEmpty
	// SkippedCorrupted is a record stored as an array instead of an object.
	SkippedCorrupted
)

// Summary counts what a migration produced.
type Summary struct {
	UsersMigrated    int `json:"usersMigrated"`
	TasksMigrated    int `json:"tasksMigrated"`
	FarmingMigrated  int `json:"farmingMigrated"`
	HistoryMigrated  int `json:"historyMigrated"`
	CorruptedSkipped int `json:"corruptedSkipped"`
	OneTimeTasks     int `json:"oneTimeTasks"`
	RecurringTasks   int `json:"recurringTasks"`
	HistoryEntries   int `json:"historyEntries"`
	UnshardedEntries int `json:"unshardedEntries"`
	ShardCollisions  int `json:"shardCollisions"`
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("usersMigrated", s.UsersMigrated),
		slog.Int("tasksMigrated", s.TasksMigrated),
		slog.Int("farmingMigrated", s.FarmingMigrated),
		slog.Int("historyMigrated", s.HistoryMigrated),
		slog.Int("corruptedSkipped", s.CorruptedSkipped),
		slog.Int("oneTimeTasks", s.OneTimeTasks),
		slog.Int("recurringTasks", s.RecurringTasks),
		slog.Int("historyEntries", s.HistoryEntries),
		slog.Int("unshardedEntries", s.UnshardedEntries),
		slog.Int("shardCollisions", s.ShardCollisions),
	)
}

// Builder accumulates the optimized document across the connections pass and
// the history pass. It is not safe for concurrent use.
type Builder struct {
	migratedAt int64
	loc        *time.Location
	doc        *export.Optimized
	// shards[uid][shardKey][logID]
	shards  map[string]map[string]map[string]json.RawMessage
	summary Summary
}

// NewBuilder returns a Builder that stamps every user with now and shards
// history in loc. A nil loc means UTC.
func NewBuilder(now time.Time, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{
		migratedAt: now.UnixMilli(),
		loc:        loc,
		doc:        export.NewOptimized(),
		shards:     map[string]map[string]map[string]json.RawMessage{},
	}
}

// AddUser migrates one record from the legacy connections collection.
func (b *Builder) AddUser(uid string, record json.RawMessage) Outcome {
	if export.IsArray(record) {
		slog.Warn("skipping corrupted array record", "uid", uid, "data", string(record))
		b.summary.CorruptedSkipped++
		return SkippedCorrupted
	}
	if !export.Truthy(record) {
		return SkippedEmpty
	}

	// Scalar records carry no fields but still count as users.
	fields, _ := export.Object(record)

	b.doc.Users[uid] = export.UserMeta{MigratedAt: b.migratedAt}
	b.summary.UsersMigrated++

	if farming := fields["farming"]; export.Truthy(farming) {
		b.doc.UserFarming[uid] = farming
		b.summary.FarmingMigrated++
	}

	tasks := export.NewUserTasks()
	if daily, ok := export.Field(fields["tasks"], "daily"); ok && export.Truthy(daily) {
		if m, ok := export.Object(daily); ok {
			tasks.Daily = m
		} else {
			slog.Debug("ignoring non-object daily tasks", "uid", uid, "data", string(daily))
		}
	}

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := fields[key]
		switch ClassifyKey(key, value) {
		case KeyRecurring:
			tasks.Recurring[key] = value
			b.summary.RecurringTasks++
		case KeyOneTime:
			tasks.OneTime[key] = value
			b.summary.OneTimeTasks++
		}
	}

	// The top-level value wins over one nested under tasks.daily.
	if lastReset := fields["lastReset"]; export.Truthy(lastReset) {
		tasks.Daily["lastReset"] = lastReset
	}

	b.doc.UserTasks[uid] = tasks
	b.summary.TasksMigrated++
	return Migrated
}

// AddHistory migrates one user's log entries from the legacy history
// collection. Entries with a timestamp go under their YYYY-MM shard; entries
// without one are stored directly under their id.
func (b *Builder) AddHistory(uid string, entries json.RawMessage) {
	if !export.Truthy(entries) {
		return
	}

	bucket, ok := b.doc.UserHistory[uid]
	if !ok {
		bucket = map[string]json.RawMessage{}
		b.doc.UserHistory[uid] = bucket
		b.summary.HistoryMigrated++
	}

	logs, _ := export.Entries(entries)
	for _, logID := range slices.Sorted(maps.Keys(logs)) {
		entry := logs[logID]
		if export.IsNull(entry) {
			continue
		}
		b.summary.HistoryEntries++

		ts, ok := entryTime(entry)
		if !ok {
			bucket[logID] = entry
			b.summary.UnshardedEntries++
			continue
		}

		key := ShardKey(ts, b.loc)
		userShards, ok := b.shards[uid]
		if !ok {
			userShards = map[string]map[string]json.RawMessage{}
			b.shards[uid] = userShards
		}
		shard, ok := userShards[key]
		if !ok {
			shard = map[string]json.RawMessage{}
			userShards[key] = shard
		}
		shard[logID] = entry
	}
}

// Build folds the shards into the history buckets and returns the finished
// document. The Builder must not be used afterwards.
func (b *Builder) Build() (*export.Optimized, Summary, error) {
	for _, uid := range slices.Sorted(maps.Keys(b.shards)) {
		bucket := b.doc.UserHistory[uid]
		for key, shard := range b.shards[uid] {
			if _, taken := bucket[key]; taken {
				// A log id that looks like a shard key; the shard wins.
				slog.Warn("unsharded history entry shadowed by shard", "uid", uid, "key", key)
				b.summary.ShardCollisions++
			}
			data, err := json.Marshal(shard)
			if err != nil {
				return nil, Summary{}, fmt.Errorf("encode shard %s for user %s: %w", key, uid, err)
			}
			bucket[key] = data
		}
	}
	return b.doc, b.summary, nil
}
