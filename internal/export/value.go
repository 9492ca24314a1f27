package export

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	b := trim(raw)
	return len(b) == 0 || string(b) == "null"
}

// IsArray reports whether raw holds a JSON array.
func IsArray(raw json.RawMessage) bool {
	b := trim(raw)
	return len(b) > 0 && b[0] == '['
}

// IsObject reports whether raw holds a JSON object.
func IsObject(raw json.RawMessage) bool {
	b := trim(raw)
	return len(b) > 0 && b[0] == '{'
}

// Truthy reports whether raw holds a value that counts as set: anything
// except absent, null, false, 0 and the empty string.
func Truthy(raw json.RawMessage) bool {
	b := trim(raw)
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return string(b) != `""`
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		return err == nil && f != 0
	}
}

// IsTrue reports whether raw is exactly the boolean true.
func IsTrue(raw json.RawMessage) bool {
	return string(trim(raw)) == "true"
}

// Object decodes raw as a JSON object. ok is false for any other shape.
func Object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if !IsObject(raw) {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Field returns the named member of a JSON object. ok is false when raw is
// not an object or has no such member.
func Field(raw json.RawMessage, name string) (json.RawMessage, bool) {
	m, ok := Object(raw)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// Entries returns the members of an object, or the elements of an array keyed
// by index, which is how the export writes dense integer keys. ok is false for
// any other shape.
func Entries(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if m, ok := Object(raw); ok {
		return m, true
	}
	if !IsArray(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	m := make(map[string]json.RawMessage, len(items))
	for i, item := range items {
		m[strconv.Itoa(i)] = item
	}
	return m, true
}

func kind(raw json.RawMessage) string {
	b := trim(raw)
	if len(b) == 0 {
		return "nothing"
	}
	switch b[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// Equal compares two JSON values by decoded content, so 500 and 500.0 match.
// Two absent values are equal.
func Equal(a, b json.RawMessage) bool {
	aNull, bNull := len(trim(a)) == 0, len(trim(b)) == 0
	if aNull || bNull {
		return aNull == bNull
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(trim(a)) == string(trim(b))
	}
	return jsonEqual(av, bv)
}

func jsonEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !jsonEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

var shardKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// IsShardKey reports whether key has the YYYY-MM form of a history shard.
// An unsharded log entry whose id happens to match is indistinguishable.
func IsShardKey(key string) bool {
	return shardKeyPattern.MatchString(key)
}
