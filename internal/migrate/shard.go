package migrate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/guanke/papaya-admin/internal/export"
)

// maxEpochMillis bounds timestamps to ±100,000,000 days around the epoch.
const maxEpochMillis = 8.64e15

// ShardKey returns the YYYY-MM bucket that t falls into in loc.
func ShardKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// entryTime reads the timestamp of a history log entry. Epoch milliseconds
// are the normal form; RFC 3339 strings are accepted too, and true reads as
// 1 ms like the app's date coercion. ok is false when the entry has no usable
// timestamp and must be stored unsharded.
func entryTime(entry json.RawMessage) (time.Time, bool) {
	raw, ok := export.Field(entry, "timestamp")
	if !ok || !export.Truthy(raw) {
		return time.Time{}, false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}, false
	}
	switch ts := v.(type) {
	case bool:
		return fromMillis(1)
	case float64:
		return fromMillis(ts)
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t, true
		}
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return fromMillis(f)
		}
	}
	return time.Time{}, false
}

func fromMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}
