package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/coxlabs/coxswain/internal/qa"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func sampleHistory(now time.Time) *qa.QAHistory {
	return &qa.QAHistory{
		Sessions: []qa.SessionSummary{
			{ItemID: "item-1", StartTime: now.Add(-time.Minute), EndTime: now, Iterations: 2, FinalStatus: "passed", IssueCount: 1},
			{ItemID: "item-2", StartTime: now, EndTime: now.Add(time.Minute), Iterations: 5, FinalStatus: "escalated_skip", IssueCount: 7},
		},
		RecurringIssues: []qa.RecurringIssue{
			{Type: qa.IssueTests, File: "a.go", Occurrences: 2, FirstSeen: now, LastSeen: now},
			{Type: qa.IssueLint, File: "b.go", Occurrences: 3, FirstSeen: now, LastSeen: now, FlaggedForReview: true},
		},
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".coxswain", "memory.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestArchiveRun_SessionsAndRecurring(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := db.ArchiveRun("run-1", sampleHistory(now)); err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}

	sessions, err := db.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	// Newest first.
	if sessions[0].ItemID != "item-2" || sessions[0].FinalStatus != "escalated_skip" {
		t.Errorf("first session = %+v", sessions[0])
	}
	if sessions[1].RunID != "run-1" || sessions[1].Iterations != 2 {
		t.Errorf("second session = %+v", sessions[1])
	}

	recurring, err := db.CarriedRecurring()
	if err != nil {
		t.Fatalf("CarriedRecurring failed: %v", err)
	}
	if len(recurring) != 2 {
		t.Fatalf("recurring = %+v, want 2 entries", recurring)
	}
	byFile := map[string]qa.RecurringIssue{}
	for _, ri := range recurring {
		byFile[ri.File] = ri
	}
	if byFile["a.go"].Occurrences != 2 || byFile["a.go"].FlaggedForReview {
		t.Errorf("a.go entry = %+v", byFile["a.go"])
	}
	if byFile["b.go"].Occurrences != 3 || !byFile["b.go"].FlaggedForReview {
		t.Errorf("b.go entry = %+v", byFile["b.go"])
	}
}

func TestArchiveRun_MergesAcrossRuns(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := db.ArchiveRun("run-1", sampleHistory(now)); err != nil {
		t.Fatalf("first archive failed: %v", err)
	}

	second := &qa.QAHistory{
		RecurringIssues: []qa.RecurringIssue{
			// Same signature again: occurrences accumulate, flag latches.
			{Type: qa.IssueTests, File: "a.go", Occurrences: 1, FirstSeen: now, LastSeen: now.Add(time.Hour), FlaggedForReview: true},
		},
	}
	if err := db.ArchiveRun("run-2", second); err != nil {
		t.Fatalf("second archive failed: %v", err)
	}

	recurring, err := db.CarriedRecurring()
	if err != nil {
		t.Fatalf("CarriedRecurring failed: %v", err)
	}
	byFile := map[string]qa.RecurringIssue{}
	for _, ri := range recurring {
		byFile[ri.File] = ri
	}
	got := byFile["a.go"]
	if got.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 2+1=3", got.Occurrences)
	}
	if !got.FlaggedForReview {
		t.Error("flag should latch across runs")
	}
}

func TestArchiveRun_SkipsCarriedOccurrences(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	// A tracker seeded with 5 carried occurrences that saw 2 more this
	// run must archive only the delta.
	history := &qa.QAHistory{
		RecurringIssues: []qa.RecurringIssue{
			{Type: qa.IssueTests, File: "a.go", Occurrences: 7, CarriedOver: 5, FirstSeen: now, LastSeen: now},
			// Purely carried entries write nothing.
			{Type: qa.IssueLint, File: "b.go", Occurrences: 4, CarriedOver: 4, FirstSeen: now, LastSeen: now},
		},
	}
	if err := db.ArchiveRun("run-1", history); err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}

	recurring, err := db.CarriedRecurring()
	if err != nil {
		t.Fatalf("CarriedRecurring failed: %v", err)
	}
	if len(recurring) != 1 {
		t.Fatalf("recurring = %+v, want only the delta entry", recurring)
	}
	if recurring[0].File != "a.go" || recurring[0].Occurrences != 2 {
		t.Errorf("entry = %+v, want a.go with 2 occurrences", recurring[0])
	}
}

func TestListSessions_Limit(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	if err := db.ArchiveRun("run-1", sampleHistory(now)); err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}
	sessions, err := db.ListSessions(1)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
}
