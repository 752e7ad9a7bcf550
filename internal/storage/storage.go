// Package storage provides the training run ledger for the churn pipeline.
// It uses BoltDB as the underlying storage engine and records one entry per
// training run: the version trained, where the artifact was written, and the
// evaluation results.
//
// The ledger stands in for an experiment-tracking service. It is only opened
// by the training entry point, never by the serving process.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"churn-serving/internal/common"

	"go.etcd.io/bbolt"
)

const runsBucket = "runs" // Bucket name for training run records

// Run is a single training run as recorded in the ledger.
type Run struct {
	ID         string            `json:"id"`
	Version    string            `json:"version"`
	Kind       string            `json:"kind"`
	Location   string            `json:"location"`
	Features   []string          `json:"features"`
	Accuracy   float64           `json:"accuracy"`
	TrainRows  int               `json:"train_rows"`
	TestRows   int               `json:"test_rows"`
	Params     map[string]string `json:"params,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
}

// Ledger persists training runs in BoltDB.
type Ledger struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the ledger database inside dataPath.
func New(dataPath string) (*Ledger, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, common.DefaultLedgerFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (l *Ledger) Close() error {
	if l.db != nil {
		err := l.db.Close()
		l.db = nil
		return err
	}
	return nil
}

// RecordRun appends a run. Keys are "<version>/<zero-padded unix nanos>" so a
// cursor walks one version's runs in chronological order.
func (l *Ledger) RecordRun(run Run) error {
	if run.Version == "" {
		return fmt.Errorf("run has no version")
	}

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		return b.Put(runKey(run.Version, run.StartedAt), data)
	})
}

// Runs returns the runs recorded for version, oldest first.
func (l *Ledger) Runs(version string) ([]Run, error) {
	return l.scan([]byte(version + "/"))
}

// AllRuns returns every recorded run ordered by version then time.
func (l *Ledger) AllRuns() ([]Run, error) {
	return l.scan(nil)
}

// LatestRun returns the most recent run for version, or nil when the
// version was never trained with the ledger enabled.
func (l *Ledger) LatestRun(version string) (*Run, error) {
	runs, err := l.Runs(version)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[len(runs)-1], nil
}

func (l *Ledger) scan(prefix []byte) ([]Run, error) {
	var runs []Run

	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

func runKey(version string, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s/%020d", version, at.UnixNano()))
}
