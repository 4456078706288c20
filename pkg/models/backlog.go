// Package models defines the core data types shared across coxswain:
// work items, backlogs, classification results, and pipeline policies.
package models

// WorkItem represents a single story in the backlog.
type WorkItem struct {
	// ID is the unique identifier for this item (e.g. "US-001").
	ID string `json:"id"`
	// Title is the short description of the item.
	Title string `json:"title"`
	// Description provides detailed information about the item.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria lists the conditions that must hold for the
	// item to be considered done.
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	// Priority orders items within the backlog; lower runs first.
	Priority int `json:"priority"`
	// Passes is true once a checkpoint for this item has been committed.
	// Only the execution controller flips this.
	Passes bool `json:"passes"`
	// Notes carries free-form annotations accumulated during the run.
	Notes string `json:"notes,omitempty"`
}

// Backlog is the ordered set of work items for one run.
type Backlog struct {
	// ProjectName identifies the project this backlog belongs to.
	ProjectName string `json:"projectName"`
	// BranchName is the branch the runner works on.
	BranchName string `json:"branchName,omitempty"`
	// Items are the work items in priority order.
	Items []WorkItem `json:"items"`
	// Complexity is attached after classification and immutable
	// thereafter unless reclassification is explicitly requested.
	Complexity Level `json:"complexity,omitempty"`
	// ComplexityDetails holds the full classification result.
	ComplexityDetails *ClassificationResult `json:"complexityDetails,omitempty"`
}

// Item returns the work item with the given id, or nil if absent.
func (b *Backlog) Item(id string) *WorkItem {
	for i := range b.Items {
		if b.Items[i].ID == id {
			return &b.Items[i]
		}
	}
	return nil
}

// Remaining returns the items that have not passed yet, in order.
func (b *Backlog) Remaining() []WorkItem {
	var out []WorkItem
	for _, item := range b.Items {
		if !item.Passes {
			out = append(out, item)
		}
	}
	return out
}

// Classified returns true if the backlog has been classified.
func (b *Backlog) Classified() bool {
	return b.Complexity != "" && b.ComplexityDetails != nil
}
