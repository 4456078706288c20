// Package runner drives execution rounds over a backlog: classify once,
// then per item run the bounded validation loop, checkpoint on success,
// and escalate when automated remediation stalls. Exactly one item is in
// flight at a time; pause and cancel take effect at item boundaries.
package runner

import (
	"context"

	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/pkg/models"
)

// Executor is the external implementation collaborator (e.g. a
// code-writing agent). The control plane only validates its output; it
// never edits files itself.
type Executor interface {
	// Implement attempts one implementation round for the item.
	// feedback carries the issues from the previous round, guidance
	// carries human direction from an escalation.
	Implement(ctx context.Context, item models.WorkItem, feedback []qa.Issue, guidance string) (qa.ImplementationResult, error)
}

// Researcher is an optional executor capability: a research pass run
// once per item before implementation when the policy asks for it.
type Researcher interface {
	Research(ctx context.Context, item models.WorkItem) (string, error)
}

// SelfCritic is an optional executor capability: a critique-and-improve
// pass between implementation and validation.
type SelfCritic interface {
	Critique(ctx context.Context, item models.WorkItem, result qa.ImplementationResult) (qa.ImplementationResult, error)
}

// GateRunner is the external quality-gate collaborator. It reports
// passed/failed/unknown per gate; the control plane never runs build,
// lint or test commands itself.
type GateRunner interface {
	RunGates(ctx context.Context, depth models.QADepth) (qa.GateResults, error)
}

// EscalationPrompter hands an escalation report to a human and returns
// their choice.
type EscalationPrompter interface {
	Prompt(ctx context.Context, report qa.EscalationReport) (qa.HumanResponse, error)
}

// Logger is the minimal logging surface the runner needs.
type Logger interface {
	Log(format string, args ...any)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Log(string, ...any) {}
