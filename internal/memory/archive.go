package memory

import (
	"fmt"
	"time"

	"github.com/coxlabs/coxswain/internal/qa"
)

// SessionRecord is one archived QA session row.
type SessionRecord struct {
	RunID       string
	ItemID      string
	StartedAt   time.Time
	EndedAt     time.Time
	Iterations  int
	FinalStatus string
	IssueCount  int
}

// ArchiveRun copies a finished run's QA history into the cross-run
// archive: session summaries are appended, recurring-issue counts are
// merged into the global signatures, and the review latch stays latched.
func (db *DB) ArchiveRun(runID string, history *qa.QAHistory) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, s := range history.Sessions {
		_, err := tx.Exec(`
			INSERT INTO qa_sessions (run_id, item_id, started_at, ended_at, iterations, final_status, issue_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, s.ItemID, formatTime(s.StartTime), formatTime(s.EndTime), s.Iterations, s.FinalStatus, s.IssueCount)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("archive session: %w", err)
		}
	}

	for _, ri := range history.RecurringIssues {
		delta := ri.Occurrences - ri.CarriedOver
		if delta <= 0 {
			continue
		}
		flagged := 0
		if ri.FlaggedForReview {
			flagged = 1
		}
		// Merge: occurrences accumulate, first_seen keeps the earliest,
		// flagged only ever goes to 1.
		_, err := tx.Exec(`
			INSERT INTO recurring_issues (issue_type, file, occurrences, first_seen, last_seen, flagged)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(issue_type, file) DO UPDATE SET
				occurrences = occurrences + excluded.occurrences,
				last_seen = excluded.last_seen,
				flagged = MAX(flagged, excluded.flagged)
		`, string(ri.Type), ri.File, delta, formatTime(ri.FirstSeen), formatTime(ri.LastSeen), flagged)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("archive recurring issue: %w", err)
		}
	}

	return tx.Commit()
}

// ListSessions returns archived sessions, newest first, optionally
// limited.
func (db *DB) ListSessions(limit int) ([]SessionRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `
		SELECT run_id, item_id, started_at, ended_at, iterations, final_status, issue_count
		FROM qa_sessions ORDER BY ended_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var started, ended string
		if err := rows.Scan(&r.RunID, &r.ItemID, &started, &ended, &r.Iterations, &r.FinalStatus, &r.IssueCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt, _ = parseTime(started)
		r.EndedAt, _ = parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CarriedRecurring returns the recurring-issue signatures accumulated
// across all prior runs, for seeding a new run's tracker.
func (db *DB) CarriedRecurring() ([]qa.RecurringIssue, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT issue_type, file, occurrences, first_seen, last_seen, flagged
		FROM recurring_issues ORDER BY issue_type, file
	`)
	if err != nil {
		return nil, fmt.Errorf("list recurring issues: %w", err)
	}
	defer rows.Close()

	var out []qa.RecurringIssue
	for rows.Next() {
		var ri qa.RecurringIssue
		var issueType, first, last string
		var flagged int
		if err := rows.Scan(&issueType, &ri.File, &ri.Occurrences, &first, &last, &flagged); err != nil {
			return nil, fmt.Errorf("scan recurring issue: %w", err)
		}
		ri.Type = qa.IssueType(issueType)
		ri.FirstSeen, _ = parseTime(first)
		ri.LastSeen, _ = parseTime(last)
		ri.FlaggedForReview = flagged != 0
		out = append(out, ri)
	}
	return out, rows.Err()
}
