// Package verify cross-checks an optimized export against the legacy export
// it was produced from. It treats the migration as a black box: counts and a
// handful of sampled fields are compared, the transformation is not re-run.
package verify

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/guanke/papaya-admin/internal/export"
)

// DefaultUserCountTolerance is the largest user-count gap reported as a
// warning. Larger gaps are errors. The value is a rule of thumb for the
// handful of corrupted records production exports carry.
const DefaultUserCountTolerance = 5

// Options tune the checks.
type Options struct {
	// UserCountTolerance is the largest difference between legacy and
	// optimized user counts that is only a warning. Zero requires equality.
	UserCountTolerance int
}

// Report is the outcome of a verification run.
type Report struct {
	Passed         bool     `json:"passed"`
	LegacyUsers    int      `json:"legacyUsers"`
	OptimizedUsers int      `json:"optimizedUsers"`
	CorruptedUsers int      `json:"corruptedUsers"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Verify runs every check and returns the report. It never modifies either
// document.
func Verify(legacy *export.Legacy, optimized *export.Optimized, opts Options) *Report {
	r := &Report{
		LegacyUsers:    len(legacy.Connections),
		OptimizedUsers: len(optimized.Users),
		Errors:         []string{},
		Warnings:       []string{},
	}
	for _, record := range legacy.Connections {
		if export.IsArray(record) {
			r.CorruptedUsers++
		}
	}

	checkUserCount(r, opts.UserCountTolerance)
	for _, uid := range slices.Sorted(maps.Keys(legacy.Connections)) {
		checkUser(r, uid, legacy.Connections[uid], optimized)
	}
	for _, uid := range slices.Sorted(maps.Keys(legacy.History)) {
		checkHistory(r, uid, legacy.History[uid], optimized)
	}

	r.Passed = len(r.Errors) == 0
	return r
}

func checkUserCount(r *Report, tolerance int) {
	diff := r.LegacyUsers - r.OptimizedUsers
	if diff == 0 {
		return
	}
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		r.errorf("User count mismatch! Legacy: %d, New: %d", r.LegacyUsers, r.OptimizedUsers)
		return
	}
	r.warnf("User count slight mismatch. Legacy: %d, New: %d (%d corrupted records skipped)",
		r.LegacyUsers, r.OptimizedUsers, r.CorruptedUsers)
}

func checkUser(r *Report, uid string, record json.RawMessage, optimized *export.Optimized) {
	// Falsy records are skipped by the migrator, so they are not expected.
	if export.IsArray(record) || !export.Truthy(record) {
		return
	}

	if _, ok := optimized.Users[uid]; !ok {
		r.errorf("Missing user: %s", uid)
		return
	}

	fields, _ := export.Object(record)

	if farming := fields["farming"]; export.Truthy(farming) {
		migrated := optimized.UserFarming[uid]
		switch {
		case !export.Truthy(migrated):
			r.errorf("Missing farming data for user: %s", uid)
		case !sameField(farming, migrated, "startTime"):
			r.errorf("Farming data mismatch for user: %s", uid)
		}
	}

	// Only key "1" is sampled.
	if export.IsTrue(fields["1"]) {
		tasks, ok := optimized.UserTasks[uid]
		if !ok || !export.Truthy(tasks.OneTime["1"]) {
			r.errorf("Missing Task '1' for user: %s", uid)
		}
	}
}

func sameField(a, b json.RawMessage, name string) bool {
	av, _ := export.Field(a, name)
	bv, _ := export.Field(b, name)
	return export.Equal(av, bv)
}

func checkHistory(r *Report, uid string, entries json.RawMessage, optimized *export.Optimized) {
	logs := legacyEntries(entries)
	if len(logs) == 0 {
		return
	}
	bucket, ok := optimized.UserHistory[uid]
	if !ok {
		r.warnf("Missing history for user: %s", uid)
		return
	}
	if got := countMigratedEntries(bucket, logs); got != len(logs) {
		r.warnf("History entry count mismatch for user %s. Legacy: %d, New: %d", uid, len(logs), got)
	}
}

func legacyEntries(raw json.RawMessage) map[string]json.RawMessage {
	m, _ := export.Entries(raw)
	maps.DeleteFunc(m, func(_ string, v json.RawMessage) bool {
		return export.IsNull(v)
	})
	return m
}

// countMigratedEntries counts a YYYY-MM key as a shard of entries unless it
// holds the legacy log entry of the same id unchanged.
func countMigratedEntries(bucket, logs map[string]json.RawMessage) int {
	n := 0
	for key, value := range bucket {
		if export.IsShardKey(key) {
			entry, isLog := logs[key]
			shard, isShard := export.Object(value)
			if isShard && !(isLog && export.Equal(entry, value)) {
				n += len(shard)
				continue
			}
		}
		n++
	}
	return n
}
