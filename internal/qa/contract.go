package qa

// GateStatus is the outcome an external quality-gate runner reports for
// one gate. The loop never executes gates itself.
type GateStatus string

const (
	// GatePassed means the gate ran and succeeded.
	GatePassed GateStatus = "passed"
	// GateFailed means the gate ran and found problems.
	GateFailed GateStatus = "failed"
	// GateUnknown means the gate was not run. A gate never run is not
	// considered failed.
	GateUnknown GateStatus = "unknown"
)

// GateName identifies one of the three quality gates.
type GateName string

const (
	GateTypecheck GateName = "typecheck"
	GateLint      GateName = "lint"
	GateTests     GateName = "tests"
)

// GateResults carries the per-gate statuses supplied by the external
// gate runner for one validation pass.
type GateResults struct {
	Typecheck GateStatus `json:"typecheck"`
	Lint      GateStatus `json:"lint"`
	Tests     GateStatus `json:"tests"`
}

// Status returns the status for a named gate; unset statuses read as
// unknown.
func (g GateResults) Status(name GateName) GateStatus {
	var s GateStatus
	switch name {
	case GateTypecheck:
		s = g.Typecheck
	case GateLint:
		s = g.Lint
	case GateTests:
		s = g.Tests
	}
	if s == "" {
		return GateUnknown
	}
	return s
}

// ImplementationResult is what the external implementation executor
// reports for one item: which acceptance criteria it completed, with
// free-form evidence per criterion.
type ImplementationResult struct {
	CompletedCriteria []string          `json:"completedCriteria"`
	Evidence          map[string]string `json:"evidence,omitempty"`
}

// Satisfied reports whether a criterion is marked complete.
func (r ImplementationResult) Satisfied(criterion string) bool {
	for _, c := range r.CompletedCriteria {
		if c == criterion {
			return true
		}
	}
	return false
}
