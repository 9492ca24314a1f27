package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{``, false},
		{`null`, false},
		{`false`, false},
		{`0`, false},
		{`-0.0`, false},
		{`""`, false},
		{`true`, true},
		{`1`, true},
		{`"x"`, true},
		{`{}`, true},
		{`[]`, true},
		{`  42 `, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(json.RawMessage(tt.raw)), "Truthy(%q)", tt.raw)
	}
}

func TestShapes(t *testing.T) {
	assert.True(t, IsArray(json.RawMessage(` [true]`)))
	assert.False(t, IsArray(json.RawMessage(`{"0": true}`)))
	assert.True(t, IsObject(json.RawMessage(`{}`)))
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(json.RawMessage(`null`)))
	assert.True(t, IsTrue(json.RawMessage(`true`)))
	assert.False(t, IsTrue(json.RawMessage(`"true"`)))
}

func TestField(t *testing.T) {
	v, ok := Field(json.RawMessage(`{"startTime": 500}`), "startTime")
	require.True(t, ok)
	assert.Equal(t, "500", string(v))

	_, ok = Field(json.RawMessage(`{"startTime": 500}`), "endTime")
	assert.False(t, ok)

	_, ok = Field(json.RawMessage(`[1]`), "0")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(json.RawMessage(`500`), json.RawMessage(`500.0`)))
	assert.True(t, Equal(json.RawMessage(`{"a": [1, "x"]}`), json.RawMessage(`{"a":[1,"x"]}`)))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(json.RawMessage(`500`), nil))
	assert.False(t, Equal(json.RawMessage(`500`), json.RawMessage(`"500"`)))
	assert.False(t, Equal(json.RawMessage(`{"a": 1}`), json.RawMessage(`{"a": 1, "b": 2}`)))
}

func TestIsShardKey(t *testing.T) {
	assert.True(t, IsShardKey("2023-11"))
	assert.False(t, IsShardKey("2023-1"))
	assert.False(t, IsShardKey("-NxYz"))
}

func TestDecodeLegacy_Defaults(t *testing.T) {
	doc, err := DecodeLegacy([]byte(`{"other": 1}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Connections)
	assert.NotNil(t, doc.History)

	_, err = DecodeLegacy([]byte(`{"connections": `))
	assert.Error(t, err)
}

func TestDecodeLegacy_ArrayCollections(t *testing.T) {
	doc, err := DecodeLegacy([]byte(`{"connections": [{"1": true}, null], "history": {"u1": {}}}`))
	require.NoError(t, err)
	assert.Len(t, doc.Connections, 2)
	assert.JSONEq(t, `{"1": true}`, string(doc.Connections["0"]))
	assert.True(t, IsNull(doc.Connections["1"]))
	assert.Contains(t, doc.History, "u1")

	_, err = DecodeLegacy([]byte(`{"connections": 5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connections: expected an object or array, got number")
}

func TestEntries(t *testing.T) {
	m, ok := Entries(json.RawMessage(`["a", null]`))
	require.True(t, ok)
	require.Len(t, m, 2)
	assert.JSONEq(t, `"a"`, string(m["0"]))
	assert.True(t, IsNull(m["1"]))

	m, ok = Entries(json.RawMessage(`{"x": 1}`))
	require.True(t, ok)
	assert.Contains(t, m, "x")

	_, ok = Entries(json.RawMessage(`"text"`))
	assert.False(t, ok)
}

func TestWriteOptimized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db_optimized.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	doc := NewOptimized()
	doc.Users["u1"] = UserMeta{MigratedAt: 42}
	tasks := NewUserTasks()
	tasks.OneTime["1"] = json.RawMessage(`true`)
	doc.UserTasks["u1"] = tasks

	data, err := WriteOptimized(path, doc)
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
	assert.Contains(t, string(onDisk), "\n  \"user_farming\": {}")

	back, err := ReadOptimized(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), back.Users["u1"].MigratedAt)
	assert.Equal(t, "true", string(back.UserTasks["u1"].OneTime["1"]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteOptimized_MissingDir(t *testing.T) {
	_, err := WriteOptimized(filepath.Join(t.TempDir(), "nope", "out.json"), NewOptimized())
	assert.Error(t, err)
}
