package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	runsBucket  = "runs"
	runIDBucket = "run_ids"
)

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("run not found")

// Kind names the job a run belongs to.
type Kind string

const (
	KindMigrate Kind = "migrate"
	KindVerify  Kind = "verify"
)

// Run is one ledger entry.
type Run struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Input      string          `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	Checksum   string          `json:"checksum,omitempty"`
	ArchiveURL string          `json:"archive_url,omitempty"`
	Passed     bool            `json:"passed"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Store persists migration and verification runs to BoltDB.
type Store struct {
	db *bbolt.DB
	mu sync.Mutex
}

// New opens or creates the ledger at path.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists([]byte(runsBucket)); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists([]byte(runIDBucket)); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records run, assigning an id and start time when they are unset. Saving a run with an
// existing id replaces it.
func (s *Store) SaveRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	key := runKey(run)

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		ids := tx.Bucket([]byte(runIDBucket))
		if old := ids.Get([]byte(run.ID)); old != nil && string(old) != string(key) {
			if err := runs.Delete(old); err != nil {
				return err
			}
		}
		if err := runs.Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(run.ID), key)
	})
}

// GetRun fetches a run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run *Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(runIDBucket)).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := tx.Bucket([]byte(runsBucket)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		run = &Run{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first, skipping offset and returning at most
// limit entries.
func (s *Store) ListRuns(limit, offset int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := []Run{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			runs = append(runs, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// LatestRun returns the most recent run of kind, or ErrNotFound.
func (s *Store) LatestRun(kind Kind) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run *Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.Kind == kind {
				run = &r
				return nil
			}
		}
		return fmt.Errorf("%w: no %s run", ErrNotFound, kind)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// runKey orders runs by start time; the id breaks ties.
func runKey(run *Run) []byte {
	return []byte(fmt.Sprintf("%020d-%s", run.StartedAt.UnixNano(), run.ID))
}
