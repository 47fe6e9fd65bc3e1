package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/crucible-dev/crucible/internal/retry"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "crucible.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCycleRoundTrip(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateCycle("task-1", 3)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateCycle returned empty ID")
	}

	got, err := db.GetCycle(created.ID)
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if got.TaskID != "task-1" || got.MaxAttempts != 3 {
		t.Errorf("GetCycle = %+v", got)
	}
	if got.Status != string(retry.StatusInProgress) {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}
	if got.FinishedAt != nil {
		t.Error("FinishedAt set on a fresh cycle")
	}
}

func TestFinishCycle(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateCycle("task-1", 3)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}

	if err := db.FinishCycle(created.ID, retry.StatusFailed, 3, 12000, 4000); err != nil {
		t.Fatalf("FinishCycle: %v", err)
	}

	got, err := db.GetCycle(created.ID)
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if got.Status != string(retry.StatusFailed) {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Attempts != 3 || got.InputTokens != 12000 || got.OutputTokens != 4000 {
		t.Errorf("counters = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestFinishCycleUnknownID(t *testing.T) {
	db := openTestDB(t)
	if err := db.FinishCycle("missing", retry.StatusFailed, 0, 0, 0); err == nil {
		t.Fatal("FinishCycle succeeded for unknown cycle")
	}
}

func TestAttempts(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateCycle("task-1", 3)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}

	if err := db.RecordAttempt(created.ID, 0, "REJECTED", retry.ActionRetry, []string{"missing null check"}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := db.RecordAttempt(created.ID, 1, "APPROVED", retry.ActionSuccess, nil); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	attempts, err := db.ListAttempts(created.ID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if attempts[0].Number != 0 || attempts[0].Verdict != "REJECTED" {
		t.Errorf("attempt[0] = %+v", attempts[0])
	}
	if len(attempts[0].Issues) != 1 || attempts[0].Issues[0] != "missing null check" {
		t.Errorf("attempt[0].Issues = %v", attempts[0].Issues)
	}
	if attempts[1].Action != string(retry.ActionSuccess) {
		t.Errorf("attempt[1].Action = %q", attempts[1].Action)
	}
}

func TestListCyclesFiltersByTask(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateCycle("task-a", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCycle("task-b", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCycle("task-a", 3); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListCycles("", 0)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all cycles = %d, want 3", len(all))
	}

	taskA, err := db.ListCycles("task-a", 0)
	if err != nil {
		t.Fatalf("ListCycles(task-a): %v", err)
	}
	if len(taskA) != 2 {
		t.Errorf("task-a cycles = %d, want 2", len(taskA))
	}
	for _, c := range taskA {
		if c.TaskID != "task-a" {
			t.Errorf("unexpected cycle %+v", c)
		}
	}
}

func TestFailureReportRoundTrip(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateCycle("task-1", 3)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}

	report := retry.FailureReport{
		TaskID:            "task-1",
		TotalAttempts:     3,
		FinalStatus:       retry.StatusFailed,
		PersistentIssues:  []string{"handler drops the error from the decoder"},
		RootCauseAnalysis: "repeated decoder issue",
		RecommendedAction: "review error handling in the decoder path",
	}
	if err := db.SaveFailureReport(created.ID, report); err != nil {
		t.Fatalf("SaveFailureReport: %v", err)
	}

	got, err := db.GetFailureReport(created.ID)
	if err != nil {
		t.Fatalf("GetFailureReport: %v", err)
	}
	if got.TaskID != "task-1" || got.TotalAttempts != 3 {
		t.Errorf("report = %+v", got)
	}
	if len(got.PersistentIssues) != 1 {
		t.Errorf("PersistentIssues = %v", got.PersistentIssues)
	}

	// Saving again replaces the stored report.
	report.RecommendedAction = "decompose the task"
	if err := db.SaveFailureReport(created.ID, report); err != nil {
		t.Fatalf("second SaveFailureReport: %v", err)
	}
	got, err = db.GetFailureReport(created.ID)
	if err != nil {
		t.Fatalf("GetFailureReport: %v", err)
	}
	if got.RecommendedAction != "decompose the task" {
		t.Errorf("RecommendedAction = %q", got.RecommendedAction)
	}
}

func TestPurgeOldCycles(t *testing.T) {
	db := openTestDB(t)

	old, err := db.CreateCycle("task-old", 3)
	if err != nil {
		t.Fatal(err)
	}
	// Backdate the cycle past the retention window.
	stale := formatTime(time.Now().Add(-48 * time.Hour))
	if _, err := db.Exec(`UPDATE cycles SET started_at = ? WHERE id = ?`, stale, old.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.CreateCycle("task-new", 3); err != nil {
		t.Fatal(err)
	}

	deleted, err := db.PurgeOldCycles(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldCycles: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	remaining, err := db.ListCycles("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].TaskID != "task-new" {
		t.Errorf("remaining = %+v", remaining)
	}
}
