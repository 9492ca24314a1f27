package migrate

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/guanke/papaya-admin/internal/export"
)

// KeyKind is the category a key of a legacy user record falls into.
//
// The categories are inferred from production data rather than from a
// declared schema: numeric keys have always held task state, and task entries
// that carry a lastClaimed timer are the ones the app resets periodically.
type KeyKind int

const (
	// KeyReserved marks tasks, farming and lastReset, which are migrated on
	// their own paths.
	KeyReserved KeyKind = iota
	// KeyIgnored marks non-numeric keys. They are not task data.
	KeyIgnored
	// KeyRecurring marks a numeric key whose value is an object with a set
	// lastClaimed field.
	KeyRecurring
	// KeyOneTime marks any other numeric key, usually a bare true.
	KeyOneTime
)

func (k KeyKind) String() string {
	switch k {
	case KeyReserved:
		return "reserved"
	case KeyIgnored:
		return "ignored"
	case KeyRecurring:
		return "recurring"
	case KeyOneTime:
		return "one_time"
	default:
		return "unknown"
	}
}

var reservedKeys = map[string]bool{
	"tasks":     true,
	"farming":   true,
	"lastReset": true,
}

// ClassifyKey decides where a key of a legacy user record goes.
func ClassifyKey(key string, value json.RawMessage) KeyKind {
	if reservedKeys[key] {
		return KeyReserved
	}
	if !isNumericKey(key) {
		return KeyIgnored
	}
	if claimed, ok := export.Field(value, "lastClaimed"); ok && export.Truthy(claimed) {
		return KeyRecurring
	}
	return KeyOneTime
}

// isNumericKey follows the export's numeric coercion of keys: surrounding
// space is ignored and the empty key reads as zero. Decimal numbers may carry
// a sign, a fraction and an exponent, and out-of-range magnitudes still count.
// Unsigned 0x, 0o and 0b integers and the spelled-out Infinity are accepted.
// NaN, inf and underscore separators are not numbers.
func isNumericKey(key string) bool {
	s := strings.TrimSpace(key)
	switch s {
	case "":
		return true
	case "Infinity", "+Infinity", "-Infinity":
		return true
	}
	if base := radix(s); base != 0 {
		_, err := strconv.ParseUint(s[2:], base, 64)
		return err == nil || errors.Is(err, strconv.ErrRange)
	}
	if strings.TrimLeft(s, "0123456789+-.eE") != "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

func radix(s string) int {
	if len(s) < 3 || s[0] != '0' {
		return 0
	}
	switch s[1] {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}
