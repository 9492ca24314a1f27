// Package export holds the two database snapshots the migration tools work
// on: the legacy export keyed by connections and history, and the optimized
// export split into users, user_tasks, user_farming and user_history.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Legacy is the pre-migration snapshot. Record values stay raw because
// production data does not follow a single shape.
type Legacy struct {
	Connections map[string]json.RawMessage `json:"connections"`
	History     map[string]json.RawMessage `json:"history"`
}

// UserMeta is the metadata bucket written for every migrated user.
type UserMeta struct {
	MigratedAt int64 `json:"migratedAt"`
}

// UserTasks groups a user's task entries by category.
type UserTasks struct {
	Daily     map[string]json.RawMessage `json:"daily"`
	OneTime   map[string]json.RawMessage `json:"one_time"`
	Recurring map[string]json.RawMessage `json:"recurring"`
}

// NewUserTasks returns a UserTasks with every category initialized, so that
// empty categories serialize as {} rather than null.
func NewUserTasks() UserTasks {
	return UserTasks{
		Daily:     map[string]json.RawMessage{},
		OneTime:   map[string]json.RawMessage{},
		Recurring: map[string]json.RawMessage{},
	}
}

// Optimized is the restructured snapshot. A user's history bucket mixes
// YYYY-MM shard objects with unsharded log entries stored under their own id.
type Optimized struct {
	Users       map[string]UserMeta                   `json:"users"`
	UserTasks   map[string]UserTasks                  `json:"user_tasks"`
	UserFarming map[string]json.RawMessage            `json:"user_farming"`
	UserHistory map[string]map[string]json.RawMessage `json:"user_history"`
}

// NewOptimized returns an empty document with all four collections present.
func NewOptimized() *Optimized {
	return &Optimized{
		Users:       map[string]UserMeta{},
		UserTasks:   map[string]UserTasks{},
		UserFarming: map[string]json.RawMessage{},
		UserHistory: map[string]map[string]json.RawMessage{},
	}
}

// ReadLegacy loads a legacy export. Missing collections default to empty.
func ReadLegacy(path string) (*Legacy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy export: %w", err)
	}
	return DecodeLegacy(data)
}

// DecodeLegacy parses a legacy export document. A collection exported as an
// array is keyed by index.
func DecodeLegacy(data []byte) (*Legacy, error) {
	var raw struct {
		Connections json.RawMessage `json:"connections"`
		History     json.RawMessage `json:"history"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse legacy export: %w", err)
	}
	conns, err := collection(raw.Connections)
	if err != nil {
		return nil, fmt.Errorf("parse legacy export: connections: %w", err)
	}
	history, err := collection(raw.History)
	if err != nil {
		return nil, fmt.Errorf("parse legacy export: history: %w", err)
	}
	return &Legacy{Connections: conns, History: history}, nil
}

func collection(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if IsNull(raw) {
		return map[string]json.RawMessage{}, nil
	}
	m, ok := Entries(raw)
	if !ok {
		return nil, fmt.Errorf("expected an object or array, got %s", kind(raw))
	}
	return m, nil
}

// ReadOptimized loads an optimized export. Missing collections default to empty.
func ReadOptimized(path string) (*Optimized, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read optimized export: %w", err)
	}
	return DecodeOptimized(data)
}

// DecodeOptimized parses an optimized export document.
func DecodeOptimized(data []byte) (*Optimized, error) {
	doc := NewOptimized()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse optimized export: %w", err)
	}
	empty := NewOptimized()
	if doc.Users == nil {
		doc.Users = empty.Users
	}
	if doc.UserTasks == nil {
		doc.UserTasks = empty.UserTasks
	}
	if doc.UserFarming == nil {
		doc.UserFarming = empty.UserFarming
	}
	if doc.UserHistory == nil {
		doc.UserHistory = empty.UserHistory
	}
	return doc, nil
}

// Encode renders the document as JSON indented with two spaces. Map keys are
// sorted by encoding/json, so equal documents encode to equal bytes.
func (o *Optimized) Encode() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// WriteOptimized encodes doc and replaces path with it. The bytes go to a
// temporary file in the same directory first and are renamed into place, so
// an interrupted run leaves any previous output untouched.
func WriteOptimized(path string, doc *Optimized) ([]byte, error) {
	data, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode optimized export: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".db_optimized-*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("replace %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func trim(raw json.RawMessage) []byte {
	return bytes.TrimSpace(raw)
}
