package qa

import (
	"errors"
	"fmt"
	"time"

	"github.com/coxlabs/coxswain/internal/store"
)

// RecurringThreshold is the occurrence count at which an issue signature
// is flagged for human review.
const RecurringThreshold = 3

// SessionSummary is the immutable record a completed session leaves in
// the history.
type SessionSummary struct {
	ItemID      string    `json:"itemId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Iterations  int       `json:"iterations"`
	FinalStatus string    `json:"finalStatus"`
	IssueCount  int       `json:"issueCount"`
}

// RecurringIssue tracks how often a failure signature (type + file) has
// been seen. FlaggedForReview is a one-way latch: once set it never
// reverts.
type RecurringIssue struct {
	Type             IssueType `json:"type"`
	File             string    `json:"file,omitempty"`
	Occurrences      int       `json:"occurrences"`
	FirstSeen        time.Time `json:"firstSeen"`
	LastSeen         time.Time `json:"lastSeen"`
	FlaggedForReview bool      `json:"flaggedForReview"`
	// CarriedOver is how many of the occurrences were seeded from
	// earlier runs, so archival only writes this run's delta.
	CarriedOver int `json:"carriedOver,omitempty"`
}

// Insight is a derived observation recorded alongside the raw history.
type Insight struct {
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// QAHistory is the persisted qa-history.json document: an append-only
// session log plus two derived indexes. It is never rolled back; it is
// a historical record, not execution state.
type QAHistory struct {
	Sessions        []SessionSummary `json:"sessions"`
	RecurringIssues []RecurringIssue `json:"recurringIssues"`
	Insights        []Insight        `json:"insights"`
}

// History mediates access to qa-history.json, including the recurring
// issue tracker.
type History struct {
	store     *store.Store
	threshold int
	now       func() time.Time
}

// OpenHistory creates a History over the given run store.
func OpenHistory(st *store.Store) *History {
	return &History{store: st, threshold: RecurringThreshold, now: time.Now}
}

// load reads the history document, synthesizing an empty one when the
// document is absent or corrupt.
func (h *History) load() (*QAHistory, store.Meta, error) {
	var doc QAHistory
	meta, err := h.store.Load(store.DocQAHistory, store.SchemaQAHistory, &doc)
	if errors.Is(err, store.ErrNotFound) {
		return &QAHistory{}, store.Meta{}, nil
	}
	if err != nil {
		return nil, store.Meta{}, err
	}
	return &doc, meta, nil
}

func (h *History) save(doc *QAHistory, meta store.Meta) error {
	_, err := h.store.Save(store.DocQAHistory, store.SchemaQAHistory, meta.Seq, doc)
	return err
}

// Current returns a copy of the full history document.
func (h *History) Current() (*QAHistory, error) {
	doc, _, err := h.load()
	return doc, err
}

// Track finds or creates the recurring-issue entry for an issue's
// (type, file) signature, increments its occurrence count and flags it
// for review once the threshold is crossed. Every issue is tracked,
// fixable or not.
func (h *History) Track(issue Issue) (*RecurringIssue, error) {
	doc, meta, err := h.load()
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	idx := findRecurring(doc.RecurringIssues, issue.Type, issue.File)
	if idx < 0 {
		doc.RecurringIssues = append(doc.RecurringIssues, RecurringIssue{
			Type:      issue.Type,
			File:      issue.File,
			FirstSeen: now,
		})
		idx = len(doc.RecurringIssues) - 1
	}

	entry := &doc.RecurringIssues[idx]
	entry.Occurrences++
	entry.LastSeen = now
	if !entry.FlaggedForReview && entry.Occurrences >= h.threshold {
		entry.FlaggedForReview = true
		doc.Insights = append(doc.Insights, Insight{
			Text:      fmt.Sprintf("%s has recurred %d times in %s; flagged for human review", entry.Type, entry.Occurrences, displayFile(entry.File)),
			Source:    "recurring-issue-tracker",
			CreatedAt: now,
		})
	}

	out := *entry
	if err := h.save(doc, meta); err != nil {
		return nil, err
	}
	return &out, nil
}

// Check is a pure lookup with no side effects: have we seen this
// signature before, and how often. Returns nil when unseen.
func (h *History) Check(issue Issue) (*RecurringIssue, error) {
	doc, _, err := h.load()
	if err != nil {
		return nil, err
	}
	idx := findRecurring(doc.RecurringIssues, issue.Type, issue.File)
	if idx < 0 {
		return nil, nil
	}
	out := doc.RecurringIssues[idx]
	return &out, nil
}

// Seed pre-populates the tracker with recurring issues carried over
// from earlier runs, so the review latch spans sessions. Existing
// signatures are left untouched.
func (h *History) Seed(carried []RecurringIssue) error {
	if len(carried) == 0 {
		return nil
	}
	doc, meta, err := h.load()
	if err != nil {
		return err
	}
	for _, ri := range carried {
		if findRecurring(doc.RecurringIssues, ri.Type, ri.File) >= 0 {
			continue
		}
		ri.CarriedOver = ri.Occurrences
		doc.RecurringIssues = append(doc.RecurringIssues, ri)
	}
	return h.save(doc, meta)
}

// appendSession appends an immutable session summary.
func (h *History) appendSession(summary SessionSummary) error {
	doc, meta, err := h.load()
	if err != nil {
		return err
	}
	doc.Sessions = append(doc.Sessions, summary)
	return h.save(doc, meta)
}

func findRecurring(entries []RecurringIssue, t IssueType, file string) int {
	for i, e := range entries {
		if e.Type == t && e.File == file {
			return i
		}
	}
	return -1
}

func displayFile(file string) string {
	if file == "" {
		return "(no file)"
	}
	return file
}
