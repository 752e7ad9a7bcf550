package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"churn-serving/internal/common"
)

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	ledger, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	defer ledger.Close()

	if ledger.db == nil {
		t.Error("Ledger database is nil")
	}

	dbPath := filepath.Join(tempDir, common.DefaultLedgerFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesDataPath(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "nested", "ledger")

	ledger, err := New(dataPath)
	if err != nil {
		t.Fatalf("Failed to create ledger in nested path: %v", err)
	}
	defer ledger.Close()
}

func TestLedger_Close(t *testing.T) {
	ledger, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	if err := ledger.Close(); err != nil {
		t.Errorf("Error closing ledger: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Errorf("Error closing already closed ledger: %v", err)
	}
}

func TestRecordRun_RequiresVersion(t *testing.T) {
	ledger, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	defer ledger.Close()

	if err := ledger.RecordRun(Run{ID: "x"}); err == nil {
		t.Error("Expected error for run without version")
	}
}

func TestRuns_PerVersionChronological(t *testing.T) {
	ledger, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	defer ledger.Close()

	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	records := []Run{
		{ID: "b", Version: "v1", Accuracy: 0.9, StartedAt: base.Add(2 * time.Minute)},
		{ID: "a", Version: "v1", Accuracy: 0.8, StartedAt: base},
		{ID: "c", Version: "v1_old", Accuracy: 0.5, StartedAt: base.Add(time.Minute)},
		{ID: "d", Version: "latest", Accuracy: 1.0, StartedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range records {
		if err := ledger.RecordRun(r); err != nil {
			t.Fatalf("Failed to record run %s: %v", r.ID, err)
		}
	}

	runs, err := ledger.Runs("v1")
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs for v1, got %d", len(runs))
	}
	if runs[0].ID != "a" || runs[1].ID != "b" {
		t.Errorf("Expected runs in chronological order [a b], got [%s %s]", runs[0].ID, runs[1].ID)
	}

	latest, err := ledger.LatestRun("v1")
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if latest == nil || latest.ID != "b" {
		t.Errorf("Expected latest run b, got %+v", latest)
	}

	all, err := ledger.AllRuns()
	if err != nil {
		t.Fatalf("Failed to list all runs: %v", err)
	}
	if len(all) != len(records) {
		t.Errorf("Expected %d runs, got %d", len(records), len(all))
	}
}

func TestLatestRun_Unknown(t *testing.T) {
	ledger, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	defer ledger.Close()

	run, err := ledger.LatestRun("v9")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("Expected no run, got %+v", run)
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	ledger, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	run := Run{ID: "r1", Version: "v1", Location: "models/v1/model.json", StartedAt: time.Now()}
	if err := ledger.RecordRun(run); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	ledger.Close()

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen ledger: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LatestRun("v1")
	if err != nil || got == nil {
		t.Fatalf("Expected persisted run, got %v, %v", got, err)
	}
	if got.Location != run.Location {
		t.Errorf("Expected location %s, got %s", run.Location, got.Location)
	}
}
