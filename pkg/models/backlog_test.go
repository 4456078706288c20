package models

import "testing"

func testBacklog() *Backlog {
	return &Backlog{
		ProjectName: "demo",
		Items: []WorkItem{
			{ID: "item-1", Title: "one", Passes: true},
			{ID: "item-2", Title: "two"},
			{ID: "item-3", Title: "three"},
		},
	}
}

func TestBacklog_Item(t *testing.T) {
	b := testBacklog()
	if item := b.Item("item-2"); item == nil || item.Title != "two" {
		t.Errorf("Item(item-2) = %+v", item)
	}
	if b.Item("missing") != nil {
		t.Error("Item of unknown id should be nil")
	}

	// Item returns a pointer into the backlog, so edits stick.
	b.Item("item-2").Passes = true
	if !b.Items[1].Passes {
		t.Error("mutation through Item did not stick")
	}
}

func TestBacklog_Remaining(t *testing.T) {
	b := testBacklog()
	remaining := b.Remaining()
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
	for _, item := range remaining {
		if item.Passes {
			t.Errorf("passed item %s in remaining", item.ID)
		}
	}
}

func TestBacklog_Classified(t *testing.T) {
	b := testBacklog()
	if b.Classified() {
		t.Error("fresh backlog should not be classified")
	}
	b.Complexity = LevelStandard
	if b.Classified() {
		t.Error("level without details should not count as classified")
	}
	b.ComplexityDetails = &ClassificationResult{Level: LevelStandard}
	if !b.Classified() {
		t.Error("backlog with level and details should be classified")
	}
}
