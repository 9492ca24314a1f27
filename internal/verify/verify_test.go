package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guanke/papaya-admin/internal/export"
	"github.com/guanke/papaya-admin/internal/migrate"
)

func legacyWithUsers(t *testing.T, n int) *export.Legacy {
	t.Helper()
	conns := map[string]any{}
	history := map[string]any{}
	for i := 0; i < n; i++ {
		uid := fmt.Sprintf("%d", 6700000000+i)
		conns[uid] = map[string]any{
			"1":       true,
			"6":       map[string]any{"lastClaimed": 1000 + i},
			"farming": map[string]any{"startTime": 500 + i},
		}
		history[uid] = map[string]any{
			"a": map[string]any{"timestamp": 1700000000000 + int64(i)},
			"b": map[string]any{"note": "no timestamp"},
		}
	}
	data, err := json.Marshal(map[string]any{"connections": conns, "history": history})
	require.NoError(t, err)
	doc, err := export.DecodeLegacy(data)
	require.NoError(t, err)
	return doc
}

func migrated(t *testing.T, legacy *export.Legacy) *export.Optimized {
	t.Helper()
	out, _, err := migrate.Migrate(legacy, migrate.Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	return out
}

var defaults = Options{UserCountTolerance: DefaultUserCountTolerance}

func TestVerify_FaithfulMigrationPasses(t *testing.T) {
	legacy := legacyWithUsers(t, 10)
	report := Verify(legacy, migrated(t, legacy), defaults)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 10, report.LegacyUsers)
	assert.Equal(t, 10, report.OptimizedUsers)
}

func TestVerify_LargeUserGapIsError(t *testing.T) {
	legacy := legacyWithUsers(t, 10)
	out := migrated(t, legacy)
	removed := 0
	for uid := range out.Users {
		if removed == 7 {
			break
		}
		delete(out.Users, uid)
		removed++
	}

	report := Verify(legacy, out, defaults)

	assert.False(t, report.Passed)
	assert.Contains(t, report.Errors, "User count mismatch! Legacy: 10, New: 3")
	missing := 0
	for _, e := range report.Errors {
		if strings.HasPrefix(e, "Missing user: ") {
			missing++
		}
	}
	assert.Equal(t, 7, missing)
}

func TestVerify_CorruptedRecordsAreWarnings(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{
		"connections": {"a": {"1": true}, "b": [true], "c": [true, false]}
	}`))
	require.NoError(t, err)

	report := Verify(legacy, migrated(t, legacy), defaults)

	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.CorruptedUsers)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "User count slight mismatch. Legacy: 3, New: 1 (2 corrupted records skipped)", report.Warnings[0])
}

func TestVerify_ZeroToleranceMakesAnyGapAnError(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{"connections": {"a": {}, "b": [true]}}`))
	require.NoError(t, err)

	report := Verify(legacy, migrated(t, legacy), Options{})
	assert.False(t, report.Passed)
	assert.Equal(t, []string{"User count mismatch! Legacy: 2, New: 1"}, report.Errors)
}

func TestVerify_FarmingMismatch(t *testing.T) {
	legacy := legacyWithUsers(t, 10)
	out := migrated(t, legacy)
	out.UserFarming["6700000003"] = json.RawMessage(`{"startTime": 1}`)

	report := Verify(legacy, out, defaults)

	assert.Equal(t, []string{"Farming data mismatch for user: 6700000003"}, report.Errors)
}

func TestVerify_MissingFarming(t *testing.T) {
	legacy := legacyWithUsers(t, 2)
	out := migrated(t, legacy)
	delete(out.UserFarming, "6700000001")

	report := Verify(legacy, out, defaults)

	assert.Equal(t, []string{"Missing farming data for user: 6700000001"}, report.Errors)
}

func TestVerify_MissingSampleTask(t *testing.T) {
	legacy := legacyWithUsers(t, 2)
	out := migrated(t, legacy)
	delete(out.UserTasks["6700000000"].OneTime, "1")

	report := Verify(legacy, out, defaults)

	assert.Equal(t, []string{"Missing Task '1' for user: 6700000000"}, report.Errors)
}

func TestVerify_SampleTaskOnlyForExactTrue(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{"connections": {"a": {"1": {"done": true}}}}`))
	require.NoError(t, err)
	out := migrated(t, legacy)
	delete(out.UserTasks["a"].OneTime, "1")

	report := Verify(legacy, out, defaults)
	assert.True(t, report.Passed)
}

func TestVerify_HistoryWarnings(t *testing.T) {
	legacy := legacyWithUsers(t, 2)
	out := migrated(t, legacy)
	delete(out.UserHistory, "6700000000")
	delete(out.UserHistory["6700000001"], "b")

	report := Verify(legacy, out, defaults)

	assert.True(t, report.Passed)
	assert.Equal(t, []string{
		"Missing history for user: 6700000000",
		"History entry count mismatch for user 6700000001. Legacy: 2, New: 1",
	}, report.Warnings)
}

func TestVerify_UnshardedEntryWithShardLikeID(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{
		"connections": {"u1": {"1": true}},
		"history": {"u1": {
			"2023-11": {"note": "no timestamp", "amount": 3},
			"a": {"timestamp": 1690000000000}
		}}
	}`))
	require.NoError(t, err)
	out := migrated(t, legacy)
	require.Contains(t, out.UserHistory["u1"], "2023-11")

	report := Verify(legacy, out, defaults)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Warnings)
}

func TestVerify_ShadowedEntryIsCountedAsLost(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{
		"connections": {"u1": {"1": true}},
		"history": {"u1": {
			"2023-11": {"note": "no timestamp"},
			"a": {"timestamp": 1700000000000}
		}}
	}`))
	require.NoError(t, err)
	out := migrated(t, legacy)

	report := Verify(legacy, out, defaults)

	assert.Equal(t, []string{
		"History entry count mismatch for user u1. Legacy: 2, New: 1",
	}, report.Warnings)
}

func TestVerify_FalsyLegacyRecordsAreNotExpected(t *testing.T) {
	legacy, err := export.DecodeLegacy([]byte(`{
		"connections": {"a": null, "b": {"1": true}, "c": false, "d": 0}
	}`))
	require.NoError(t, err)
	out := migrated(t, legacy)
	require.NotContains(t, out.Users, "a")

	report := Verify(legacy, out, defaults)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{
		"User count slight mismatch. Legacy: 4, New: 1 (0 corrupted records skipped)",
	}, report.Warnings)
}

func TestReport_WriteText(t *testing.T) {
	var buf bytes.Buffer
	ok := &Report{Passed: true, Warnings: []string{"w1"}}
	require.NoError(t, ok.WriteText(&buf))
	assert.Contains(t, buf.String(), "✅ SUCCESS: Data integrity verified.")
	assert.Contains(t, buf.String(), "⚠️ WARNINGS:\n - w1\n")

	buf.Reset()
	failed := &Report{Errors: []string{"e1", "e2"}}
	require.NoError(t, failed.WriteText(&buf))
	assert.Contains(t, buf.String(), "❌ FAILED: Found errors:\n - e1\n - e2\n")
	assert.NotContains(t, buf.String(), "WARNINGS")
}

func TestReport_WriteJSON(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Passed: false, LegacyUsers: 3, Errors: []string{"e"}, Warnings: []string{}}
	require.NoError(t, r.WriteJSON(&buf))
	assert.JSONEq(t, `{
		"passed": false, "legacyUsers": 3, "optimizedUsers": 0, "corruptedUsers": 0,
		"errors": ["e"], "warnings": []
	}`, buf.String())
}

func TestReport_Headline(t *testing.T) {
	r := &Report{Passed: true, LegacyUsers: 3, OptimizedUsers: 2, CorruptedUsers: 1, Warnings: []string{"w"}}
	assert.Equal(t, "Migration verification passed: 0 errors, 1 warnings (legacy users 3, migrated users 2, corrupted 1)", r.Headline())
}
