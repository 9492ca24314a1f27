// Package pipeline runs the migrator and the verifier against files on disk
// and publishes their results to the run ledger, the R2 archive and the
// operators.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guanke/papaya-admin/internal/export"
	"github.com/guanke/papaya-admin/internal/migrate"
	"github.com/guanke/papaya-admin/internal/verify"
)

// ErrOptimizedMissing is returned by Verify when the migrator has not
// produced its output yet.
var ErrOptimizedMissing = errors.New("optimized export not found")

// MigrateResult describes one completed migration run.
type MigrateResult struct {
	RunID      string
	Input      string
	Output     string
	Summary    migrate.Summary
	Data       []byte
	Checksum   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Migrate reads the legacy export at input, restructures it and replaces
// output with the result.
func Migrate(input, output string, opts migrate.Options) (*MigrateResult, error) {
	res := &MigrateResult{
		RunID:     uuid.NewString(),
		Input:     input,
		Output:    output,
		StartedAt: time.Now(),
	}
	if opts.Now.IsZero() {
		opts.Now = res.StartedAt
	}

	legacy, err := export.ReadLegacy(input)
	if err != nil {
		return nil, err
	}

	doc, summary, err := migrate.Migrate(legacy, opts)
	if err != nil {
		return nil, err
	}

	data, err := export.WriteOptimized(output, doc)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	res.Summary = summary
	res.Data = data
	res.Checksum = hex.EncodeToString(sum[:])
	res.FinishedAt = time.Now()

	slog.Info("migration complete", "output", output, "run", res.RunID)
	slog.Info("migration summary", "summary", summary)
	return res, nil
}

// VerifyResult describes one completed verification run.
type VerifyResult struct {
	RunID      string
	Legacy     string
	Optimized  string
	Report     *verify.Report
	StartedAt  time.Time
	FinishedAt time.Time
}

// Verify checks the optimized export against the legacy one. It fails with
// ErrOptimizedMissing when the optimized file does not exist.
func Verify(legacyPath, optimizedPath string, opts verify.Options) (*VerifyResult, error) {
	if !export.Exists(optimizedPath) {
		return nil, fmt.Errorf("%w: %s", ErrOptimizedMissing, optimizedPath)
	}
	res := &VerifyResult{
		RunID:     uuid.NewString(),
		Legacy:    legacyPath,
		Optimized: optimizedPath,
		StartedAt: time.Now(),
	}

	legacy, err := export.ReadLegacy(legacyPath)
	if err != nil {
		return nil, err
	}
	optimized, err := export.ReadOptimized(optimizedPath)
	if err != nil {
		return nil, err
	}

	slog.Info("starting verification", "legacy", legacyPath, "optimized", optimizedPath)
	res.Report = verify.Verify(legacy, optimized, opts)
	res.FinishedAt = time.Now()
	slog.Info("verification finished",
		"passed", res.Report.Passed,
		"errors", len(res.Report.Errors),
		"warnings", len(res.Report.Warnings))
	return res, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
