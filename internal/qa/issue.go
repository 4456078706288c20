// Package qa implements the per-item quality validation loop: bounded
// validate-and-fix iterations over externally supplied gate results and
// acceptance criteria, with escalation to a human when the iteration cap
// is exhausted. It also maintains the append-only QA history and the
// recurring-issue tracker.
package qa

// Severity ranks how serious an issue is. Higher values dominate when
// picking an escalation recommendation.
type Severity int

const (
	// SeverityLow covers style-level problems (lint).
	SeverityLow Severity = iota + 1
	// SeverityMedium covers unmet acceptance criteria.
	SeverityMedium
	// SeverityHigh covers failing tests.
	SeverityHigh
	// SeverityCritical covers typecheck failures.
	SeverityCritical
)

// String returns the lowercase name of a severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// IssueType identifies what kind of failure an issue describes.
type IssueType string

const (
	// IssueTypecheck is a type checking failure.
	IssueTypecheck IssueType = "typecheck_failure"
	// IssueLint is a lint failure.
	IssueLint IssueType = "lint_failure"
	// IssueTests is a failing test suite.
	IssueTests IssueType = "test_failure"
	// IssueCriterion is an acceptance criterion the implementation did
	// not satisfy.
	IssueCriterion IssueType = "unmet_criterion"
	// IssueMissingExport is a symbol the implementation should expose
	// but does not.
	IssueMissingExport IssueType = "missing_export"
)

// Issue is one concrete problem found by a validation pass.
type Issue struct {
	Severity    Severity  `json:"severity"`
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	File        string    `json:"file,omitempty"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// FixAction says how an issue can be addressed.
type FixAction string

const (
	// FixAuto means a corrective command or edit can be triggered
	// without a human.
	FixAuto FixAction = "auto"
	// FixManual means the issue needs human or agent intervention
	// beyond a mechanical fix.
	FixManual FixAction = "manual"
)

// fixActions maps issue types to how they get fixed. New issue types are
// added here, not by branching logic.
var fixActions = map[IssueType]FixAction{
	IssueLint:          FixAuto,
	IssueMissingExport: FixAuto,
	IssueTypecheck:     FixManual,
	IssueTests:         FixManual,
	IssueCriterion:     FixManual,
}

// issueSeverities maps issue types to their fixed severity.
var issueSeverities = map[IssueType]Severity{
	IssueTypecheck:     SeverityCritical,
	IssueTests:         SeverityHigh,
	IssueCriterion:     SeverityMedium,
	IssueMissingExport: SeverityMedium,
	IssueLint:          SeverityLow,
}

// DetermineFixAction classifies an issue as auto-fixable or requiring
// manual intervention. Unknown types default to manual.
func DetermineFixAction(issue Issue) FixAction {
	if action, okT := fixActions[issue.Type]; okT {
		return action
	}
	return FixManual
}

// severityFor returns the fixed severity for an issue type.
func severityFor(t IssueType) Severity {
	if s, okT := issueSeverities[t]; okT {
		return s
	}
	return SeverityMedium
}
