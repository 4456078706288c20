package qa

import (
	"time"

	"github.com/coxlabs/coxswain/pkg/models"
)

// ResponseOption is one of the fixed choices offered to the human.
type ResponseOption string

const (
	// OptionGuidance asks the human for direction, then retries.
	OptionGuidance ResponseOption = "guidance"
	// OptionSkip abandons the item and moves on.
	OptionSkip ResponseOption = "skip"
	// OptionAbort stops the whole run.
	OptionAbort ResponseOption = "abort"
)

// ResponseOptions are the three choices every escalation offers.
var ResponseOptions = []ResponseOption{OptionGuidance, OptionSkip, OptionAbort}

// EscalationReport is the structured hand-off to a human after the
// automated loop gives up on an item. Escalation is a normal, expected
// terminal outcome for an item, not a control-plane failure.
type EscalationReport struct {
	ItemID         string           `json:"itemId"`
	ItemTitle      string           `json:"itemTitle"`
	Attempts       int              `json:"attempts"`
	Issues         []Issue          `json:"issues"`
	Recommendation string           `json:"recommendation"`
	Options        []ResponseOption `json:"options"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// HumanResponse is the operator's answer to an escalation.
type HumanResponse struct {
	Option  ResponseOption `json:"option"`
	Message string         `json:"message,omitempty"`
}

// recommendations maps the dominant issue type to advice. Extend the
// table to support new issue types.
var recommendations = map[IssueType]string{
	IssueTypecheck: "type errors persisted across fix attempts; review the architecture of the affected area before retrying",
	IssueTests:     "tests kept failing; review the failing cases for edge conditions the implementation misses",
	IssueCriterion: "acceptance criteria remain unmet; clarify the requirements with the story author",
}

// genericRecommendation is used when no specific table entry applies.
const genericRecommendation = "automated fixes stalled; a human should review the item before it is retried"

// EscalateToHuman builds the escalation report for an item whose
// validation loop exhausted its iteration cap. The recommendation is
// derived from the highest-severity issue type present.
func EscalateToHuman(issues []Issue, item models.WorkItem, attempts int) EscalationReport {
	return EscalationReport{
		ItemID:         item.ID,
		ItemTitle:      item.Title,
		Attempts:       attempts,
		Issues:         issues,
		Recommendation: recommendFor(issues),
		Options:        append([]ResponseOption(nil), ResponseOptions...),
		CreatedAt:      time.Now().UTC(),
	}
}

// recommendFor picks the recommendation for the highest-severity issue
// present, falling back to the generic advice.
func recommendFor(issues []Issue) string {
	var dominant *Issue
	for i := range issues {
		if dominant == nil || issues[i].Severity > dominant.Severity {
			dominant = &issues[i]
		}
	}
	if dominant == nil {
		return genericRecommendation
	}
	if rec, okT := recommendations[dominant.Type]; okT {
		return rec
	}
	return genericRecommendation
}
