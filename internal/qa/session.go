package qa

import (
	"fmt"
	"time"

	"github.com/coxlabs/coxswain/pkg/models"
)

// MaxIterations is the hard cap on validate-fix rounds per item.
const MaxIterations = 5

// IterationStatus is the outcome of one validation pass.
type IterationStatus string

const (
	// IterationPassed means both axes were satisfied.
	IterationPassed IterationStatus = "passed"
	// IterationNeedsFix means at least one issue was found.
	IterationNeedsFix IterationStatus = "needs_fix"
)

// IterationRecord is one entry in a session's iteration log.
type IterationRecord struct {
	Number    int             `json:"number"`
	Status    IterationStatus `json:"status"`
	Issues    []Issue         `json:"issues,omitempty"`
	Fixed     []Issue         `json:"fixed,omitempty"`
	Remaining []Issue         `json:"remaining,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Outcome is what RunIteration reports back to the run loop.
type Outcome struct {
	// Passed means the item satisfied both validation axes.
	Passed bool
	// Fixed are the auto-fixable issues from this pass; the caller
	// triggers the corrective commands.
	Fixed []Issue
	// Remaining are the issues that need manual intervention.
	Remaining []Issue
	// ShouldEscalate is true exactly when issues remain and the
	// iteration cap has been reached.
	ShouldEscalate bool
}

// Session drives the bounded validation loop for one work item. It is
// created per item and discarded after Complete writes its summary to
// the history.
type Session struct {
	ItemID           string
	StartTime        time.Time
	Iterations       []IterationRecord
	CurrentIteration int
	MaxIterations    int

	validator *Validator
	history   *History
	now       func() time.Time
	completed bool
}

// NewSession starts a validation session for an item at the given QA
// depth. Issues found during the session are tracked in history.
func NewSession(item models.WorkItem, depth models.QADepth, history *History) *Session {
	return &Session{
		ItemID:        item.ID,
		StartTime:     time.Now().UTC(),
		MaxIterations: MaxIterations,
		validator:     NewValidator(depth),
		history:       history,
		now:           time.Now,
	}
}

// RunIteration runs one validate pass for the item against the supplied
// implementation result and gate statuses.
//
// Once the iteration cap is reached, further calls report escalation
// immediately without running a new validation pass: the cap is hard.
func (s *Session) RunIteration(item models.WorkItem, impl ImplementationResult, gates GateResults) Outcome {
	if s.completed || s.CurrentIteration >= s.MaxIterations {
		return Outcome{ShouldEscalate: true}
	}
	s.CurrentIteration++

	issues := s.validator.Validate(item, impl, gates)

	var fixed, remaining []Issue
	for _, issue := range issues {
		// Every issue feeds the recurring tracker, whatever its fix
		// action or this pass's outcome.
		if s.history != nil {
			s.history.Track(issue)
		}
		if DetermineFixAction(issue) == FixAuto {
			fixed = append(fixed, issue)
		} else {
			remaining = append(remaining, issue)
		}
	}

	status := IterationPassed
	if len(issues) > 0 {
		status = IterationNeedsFix
	}
	s.Iterations = append(s.Iterations, IterationRecord{
		Number:    s.CurrentIteration,
		Status:    status,
		Issues:    issues,
		Fixed:     fixed,
		Remaining: remaining,
		Timestamp: s.now().UTC(),
	})

	return Outcome{
		Passed:         len(issues) == 0,
		Fixed:          fixed,
		Remaining:      remaining,
		ShouldEscalate: len(remaining) > 0 && s.CurrentIteration >= s.MaxIterations,
	}
}

// LastIssues returns the issues from the most recent iteration.
func (s *Session) LastIssues() []Issue {
	if len(s.Iterations) == 0 {
		return nil
	}
	return s.Iterations[len(s.Iterations)-1].Issues
}

// Complete writes an immutable summary to the history and seals the
// session. Calling it twice is an error; sessions are never mutated
// after completion.
func (s *Session) Complete(status string) error {
	if s.completed {
		return fmt.Errorf("session for %s already completed", s.ItemID)
	}
	s.completed = true

	issueCount := 0
	for _, it := range s.Iterations {
		issueCount += len(it.Issues)
	}
	summary := SessionSummary{
		ItemID:      s.ItemID,
		StartTime:   s.StartTime,
		EndTime:     s.now().UTC(),
		Iterations:  s.CurrentIteration,
		FinalStatus: status,
		IssueCount:  issueCount,
	}
	if s.history == nil {
		return nil
	}
	return s.history.appendSession(summary)
}
