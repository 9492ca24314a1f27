package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteText prints the human-readable report: a success or failure banner,
// the itemized errors, then any warnings.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\n--- Verification Report ---\n")
	if r.Passed {
		b.WriteString("✅ SUCCESS: Data integrity verified.\n")
	} else {
		b.WriteString("❌ FAILED: Found errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, " - %s\n", e)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("⚠️ WARNINGS:\n")
		for _, warn := range r.Warnings {
			fmt.Fprintf(&b, " - %s\n", warn)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON prints the report as an indented JSON object.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Headline is a one-line summary suitable for a chat notification.
func (r *Report) Headline() string {
	status := "passed"
	if !r.Passed {
		status = "FAILED"
	}
	return fmt.Sprintf("Migration verification %s: %d errors, %d warnings (legacy users %d, migrated users %d, corrupted %d)",
		status, len(r.Errors), len(r.Warnings), r.LegacyUsers, r.OptimizedUsers, r.CorruptedUsers)
}
