package qa

import (
	"strings"
	"testing"

	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return st
}

func testItem() models.WorkItem {
	return models.WorkItem{
		ID:    "item-1",
		Title: "Add health endpoint",
		AcceptanceCriteria: []string{
			"GET /healthz returns 200",
			"Response includes version",
		},
	}
}

func allPassedGates() GateResults {
	return GateResults{Typecheck: GatePassed, Lint: GatePassed, Tests: GatePassed}
}

func fullImpl() ImplementationResult {
	return ImplementationResult{
		CompletedCriteria: []string{
			"GET /healthz returns 200",
			"Response includes version",
		},
	}
}

func TestValidate_BothAxesClean(t *testing.T) {
	v := NewValidator(models.QADepthStandard)
	issues := v.Validate(testItem(), fullImpl(), allPassedGates())
	if len(issues) != 0 {
		t.Errorf("issues = %+v, want none", issues)
	}
}

func TestValidate_UnmetCriterion(t *testing.T) {
	v := NewValidator(models.QADepthStandard)
	impl := ImplementationResult{CompletedCriteria: []string{"GET /healthz returns 200"}}

	issues := v.Validate(testItem(), impl, allPassedGates())
	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want exactly one", issues)
	}
	if issues[0].Type != IssueCriterion {
		t.Errorf("type = %v, want unmet_criterion", issues[0].Type)
	}
	if !strings.Contains(issues[0].Description, "Response includes version") {
		t.Errorf("description %q does not name the criterion", issues[0].Description)
	}
}

func TestValidate_UnknownGateNeverBlocks(t *testing.T) {
	v := NewValidator(models.QADepthExtensive)
	gates := GateResults{Typecheck: GateUnknown, Lint: GateUnknown, Tests: GateUnknown}
	if issues := v.Validate(testItem(), fullImpl(), gates); len(issues) != 0 {
		t.Errorf("unknown gates raised issues: %+v", issues)
	}
}

func TestValidate_FailedGate(t *testing.T) {
	v := NewValidator(models.QADepthStandard)
	gates := allPassedGates()
	gates.Typecheck = GateFailed

	issues := v.Validate(testItem(), fullImpl(), gates)
	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want exactly one", issues)
	}
	if issues[0].Type != IssueTypecheck || issues[0].Severity != SeverityCritical {
		t.Errorf("issue = %+v, want critical typecheck failure", issues[0])
	}
}

func TestValidate_LightDepthIgnoresTypecheckAndLint(t *testing.T) {
	v := NewValidator(models.QADepthLight)
	gates := GateResults{Typecheck: GateFailed, Lint: GateFailed, Tests: GatePassed}
	if issues := v.Validate(testItem(), fullImpl(), gates); len(issues) != 0 {
		t.Errorf("light depth consulted typecheck/lint: %+v", issues)
	}

	gates.Tests = GateFailed
	issues := v.Validate(testItem(), fullImpl(), gates)
	if len(issues) != 1 || issues[0].Type != IssueTests {
		t.Errorf("issues = %+v, want one test failure", issues)
	}
}

func TestDetermineFixAction(t *testing.T) {
	cases := []struct {
		issueType IssueType
		want      FixAction
	}{
		{IssueLint, FixAuto},
		{IssueMissingExport, FixAuto},
		{IssueTypecheck, FixManual},
		{IssueTests, FixManual},
		{IssueCriterion, FixManual},
		{IssueType("something_new"), FixManual},
	}
	for _, tc := range cases {
		if got := DetermineFixAction(Issue{Type: tc.issueType}); got != tc.want {
			t.Errorf("DetermineFixAction(%s) = %v, want %v", tc.issueType, got, tc.want)
		}
	}
}

func TestSeverityRanking(t *testing.T) {
	if !(severityFor(IssueTypecheck) > severityFor(IssueTests)) {
		t.Error("typecheck should outrank tests")
	}
	if !(severityFor(IssueTests) > severityFor(IssueCriterion)) {
		t.Error("tests should outrank unmet criteria")
	}
	if !(severityFor(IssueCriterion) > severityFor(IssueLint)) {
		t.Error("criteria should outrank lint")
	}
}

func TestSession_PassesCleanly(t *testing.T) {
	history := OpenHistory(testStore(t))
	session := NewSession(testItem(), models.QADepthStandard, history)

	outcome := session.RunIteration(testItem(), fullImpl(), allPassedGates())
	if !outcome.Passed || outcome.ShouldEscalate {
		t.Errorf("outcome = %+v, want clean pass", outcome)
	}
	if err := session.Complete("passed"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	doc, err := history.Current()
	if err != nil {
		t.Fatalf("history load failed: %v", err)
	}
	if len(doc.Sessions) != 1 || doc.Sessions[0].FinalStatus != "passed" || doc.Sessions[0].Iterations != 1 {
		t.Errorf("session summary = %+v", doc.Sessions)
	}
}

func TestSession_EscalatesExactlyOnFinalIteration(t *testing.T) {
	history := OpenHistory(testStore(t))
	session := NewSession(testItem(), models.QADepthStandard, history)

	failing := GateResults{Typecheck: GatePassed, Lint: GatePassed, Tests: GateFailed}
	for i := 1; i < MaxIterations; i++ {
		outcome := session.RunIteration(testItem(), fullImpl(), failing)
		if outcome.Passed {
			t.Fatalf("iteration %d passed with failing tests", i)
		}
		if outcome.ShouldEscalate {
			t.Fatalf("iteration %d escalated early", i)
		}
	}

	outcome := session.RunIteration(testItem(), fullImpl(), failing)
	if !outcome.ShouldEscalate {
		t.Error("final iteration did not escalate")
	}
	if session.CurrentIteration != MaxIterations {
		t.Errorf("iterations = %d, want %d", session.CurrentIteration, MaxIterations)
	}

	// The cap is hard: further calls escalate without a new pass.
	again := session.RunIteration(testItem(), fullImpl(), allPassedGates())
	if !again.ShouldEscalate || again.Passed {
		t.Errorf("past-cap outcome = %+v, want immediate escalation", again)
	}
	if session.CurrentIteration != MaxIterations {
		t.Errorf("past-cap call ran another iteration: %d", session.CurrentIteration)
	}
}

func TestSession_AutoFixableIssuesDoNotEscalateAtCap(t *testing.T) {
	history := OpenHistory(testStore(t))
	session := NewSession(testItem(), models.QADepthStandard, history)

	lintOnly := GateResults{Typecheck: GatePassed, Lint: GateFailed, Tests: GatePassed}
	var outcome Outcome
	for i := 0; i < MaxIterations; i++ {
		outcome = session.RunIteration(testItem(), fullImpl(), lintOnly)
	}
	// Lint failures are auto-fixable, so nothing "remains" and the cap
	// does not trigger an escalation from the final pass itself.
	if outcome.ShouldEscalate {
		t.Errorf("outcome = %+v; auto-fixable-only issues should not escalate", outcome)
	}
	if len(outcome.Fixed) != 1 || len(outcome.Remaining) != 0 {
		t.Errorf("fixed = %v remaining = %v", outcome.Fixed, outcome.Remaining)
	}
}

func TestSession_CompleteTwiceFails(t *testing.T) {
	session := NewSession(testItem(), models.QADepthLight, nil)
	if err := session.Complete("passed"); err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}
	if err := session.Complete("passed"); err == nil {
		t.Error("second Complete should fail")
	}
}

func TestTrack_LatchesAtThreshold(t *testing.T) {
	history := OpenHistory(testStore(t))
	issue := Issue{Type: IssueTests, File: "internal/api/server_test.go", Description: "flaky"}

	for i := 1; i <= 2; i++ {
		entry, err := history.Track(issue)
		if err != nil {
			t.Fatalf("Track %d failed: %v", i, err)
		}
		if entry.FlaggedForReview {
			t.Fatalf("flagged after %d occurrence(s)", i)
		}
		if entry.Occurrences != i {
			t.Errorf("occurrences = %d, want %d", entry.Occurrences, i)
		}
	}

	entry, err := history.Track(issue)
	if err != nil {
		t.Fatalf("third Track failed: %v", err)
	}
	if !entry.FlaggedForReview {
		t.Error("third occurrence should latch the review flag")
	}

	doc, _ := history.Current()
	if len(doc.Insights) != 1 {
		t.Errorf("insights = %+v, want exactly one from the latch", doc.Insights)
	}

	// Fourth occurrence: latch holds, no second insight.
	entry, _ = history.Track(issue)
	if !entry.FlaggedForReview || entry.Occurrences != 4 {
		t.Errorf("fourth occurrence entry = %+v", entry)
	}
	doc, _ = history.Current()
	if len(doc.Insights) != 1 {
		t.Errorf("latch fired twice: %+v", doc.Insights)
	}
}

func TestTrack_SignatureIsTypeAndFile(t *testing.T) {
	history := OpenHistory(testStore(t))
	history.Track(Issue{Type: IssueLint, File: "a.go"})
	history.Track(Issue{Type: IssueLint, File: "b.go"})
	history.Track(Issue{Type: IssueTests, File: "a.go"})

	doc, _ := history.Current()
	if len(doc.RecurringIssues) != 3 {
		t.Errorf("recurring entries = %d, want 3 distinct signatures", len(doc.RecurringIssues))
	}
}

func TestCheck_PureLookup(t *testing.T) {
	history := OpenHistory(testStore(t))
	issue := Issue{Type: IssueLint, File: "a.go"}

	got, err := history.Check(issue)
	if err != nil || got != nil {
		t.Fatalf("Check of unseen issue = (%+v, %v), want (nil, nil)", got, err)
	}

	history.Track(issue)
	got, err = history.Check(issue)
	if err != nil || got == nil || got.Occurrences != 1 {
		t.Fatalf("Check after Track = (%+v, %v)", got, err)
	}

	// Check has no side effects.
	again, _ := history.Check(issue)
	if again.Occurrences != 1 {
		t.Errorf("Check incremented occurrences: %d", again.Occurrences)
	}
}

func TestSeed_CarriesLatchAcrossRuns(t *testing.T) {
	history := OpenHistory(testStore(t))
	carried := []RecurringIssue{
		{Type: IssueTests, File: "a.go", Occurrences: 5, FlaggedForReview: true},
	}
	if err := history.Seed(carried); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	entry, err := history.Check(Issue{Type: IssueTests, File: "a.go"})
	if err != nil || entry == nil {
		t.Fatalf("seeded entry missing: (%+v, %v)", entry, err)
	}
	if !entry.FlaggedForReview || entry.CarriedOver != 5 {
		t.Errorf("seeded entry = %+v, want flagged with carriedOver 5", entry)
	}

	// Seeding again leaves the existing signature untouched.
	history.Track(Issue{Type: IssueTests, File: "a.go"})
	if err := history.Seed(carried); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	entry, _ = history.Check(Issue{Type: IssueTests, File: "a.go"})
	if entry.Occurrences != 6 {
		t.Errorf("occurrences = %d, want 6", entry.Occurrences)
	}
}

func TestEscalateToHuman_RecommendationFollowsSeverity(t *testing.T) {
	issues := []Issue{
		{Type: IssueLint, Severity: SeverityLow},
		{Type: IssueTypecheck, Severity: SeverityCritical},
		{Type: IssueTests, Severity: SeverityHigh},
	}
	report := EscalateToHuman(issues, testItem(), MaxIterations)

	if report.Attempts != MaxIterations {
		t.Errorf("attempts = %d, want %d", report.Attempts, MaxIterations)
	}
	if len(report.Options) != 3 {
		t.Errorf("options = %v, want guidance/skip/abort", report.Options)
	}
	if report.Recommendation != recommendations[IssueTypecheck] {
		t.Errorf("recommendation = %q, want the typecheck one", report.Recommendation)
	}
}

func TestEscalateToHuman_GenericRecommendation(t *testing.T) {
	report := EscalateToHuman([]Issue{{Type: IssueType("weird")}}, testItem(), 5)
	if report.Recommendation == "" {
		t.Error("recommendation should never be empty")
	}
}
