package qa

import (
	"fmt"

	"github.com/coxlabs/coxswain/pkg/models"
)

// Validator turns gate results and acceptance-criteria coverage into
// concrete issues. Which gates are consulted depends on the pipeline
// policy's QA depth.
type Validator struct {
	gates []GateName
}

// NewValidator creates a validator for the given QA depth.
func NewValidator(depth models.QADepth) *Validator {
	return &Validator{gates: gatesForDepth(depth)}
}

// gatesForDepth selects the gates a depth requires. Extensive and
// standard both consult all three; light trusts tests alone.
func gatesForDepth(depth models.QADepth) []GateName {
	switch depth {
	case models.QADepthLight:
		return []GateName{GateTests}
	default:
		return []GateName{GateTypecheck, GateLint, GateTests}
	}
}

// Gates returns the gate names this validator consults.
func (v *Validator) Gates() []GateName {
	return append([]GateName(nil), v.gates...)
}

// Validate checks the two independent axes for one item: every
// acceptance criterion must be satisfied by the implementation result,
// and every consulted gate must report passed or unknown. The item
// passes only when both axes are clean.
func (v *Validator) Validate(item models.WorkItem, impl ImplementationResult, gates GateResults) []Issue {
	var issues []Issue

	for _, criterion := range item.AcceptanceCriteria {
		if impl.Satisfied(criterion) {
			continue
		}
		issues = append(issues, Issue{
			Severity:    severityFor(IssueCriterion),
			Type:        IssueCriterion,
			Description: fmt.Sprintf("acceptance criterion not satisfied: %s", criterion),
			Suggestion:  "revisit the implementation against this criterion",
		})
	}

	for _, gate := range v.gates {
		if gates.Status(gate) != GateFailed {
			continue
		}
		t := issueTypeForGate(gate)
		issues = append(issues, Issue{
			Severity:    severityFor(t),
			Type:        t,
			Description: fmt.Sprintf("%s gate failed", gate),
			Suggestion:  gateSuggestions[gate],
		})
	}

	return issues
}

// issueTypeForGate maps a gate to the issue type its failure raises.
func issueTypeForGate(gate GateName) IssueType {
	switch gate {
	case GateTypecheck:
		return IssueTypecheck
	case GateLint:
		return IssueLint
	default:
		return IssueTests
	}
}

var gateSuggestions = map[GateName]string{
	GateTypecheck: "fix type errors before anything else; they usually cascade",
	GateLint:      "run the linter's auto-fix and re-validate",
	GateTests:     "inspect the failing tests for missed edge cases",
}
