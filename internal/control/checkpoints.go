package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/coxlabs/coxswain/internal/store"
)

// RollbackLast is the rollback target meaning "most recent checkpoint".
const RollbackLast = "last"

// checkpointDoc returns the document name for a checkpoint id.
func checkpointDoc(id string) string {
	return filepath.Join("checkpoints", id+".json")
}

// nextCheckpointID allocates a checkpoint id of the form
// cp-<millis-timestamp>, bumped past the previous id when two
// checkpoints land in the same millisecond.
func (c *Controller) nextCheckpointID(cs *ControlState) string {
	millis := c.now().UnixMilli()
	if last := cs.LastCheckpoint(); last != nil {
		var lastMillis int64
		if _, err := fmt.Sscanf(last.ID, "cp-%d", &lastMillis); err == nil && millis <= lastMillis {
			millis = lastMillis + 1
		}
	}
	return fmt.Sprintf("cp-%d", millis)
}

// CreateCheckpoint durably records the completion of a work item: it
// writes the full snapshot, appends the index entry, marks the item
// completed, flips the backlog item's passes flag, and clears the
// current item.
func (c *Controller) CreateCheckpoint(itemID string, data any) (*Checkpoint, error) {
	cs, meta, err := c.loadState()
	if err != nil {
		return nil, err
	}
	if cs.State.Terminal() {
		return nil, fmt.Errorf("create checkpoint while %s: %w", cs.State, ErrInvalidState)
	}

	var raw json.RawMessage
	if data != nil {
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal checkpoint data: %w", err)
		}
	}

	cp := &Checkpoint{
		ID:        c.nextCheckpointID(cs),
		ItemID:    itemID,
		CreatedAt: c.now().UTC(),
		Data:      raw,
	}

	// Snapshot record first: the index entry must never point at a
	// missing record.
	if _, err := c.store.Save(checkpointDoc(cp.ID), store.SchemaCheckpoint, 0, cp); err != nil {
		return nil, fmt.Errorf("write checkpoint record: %w", err)
	}

	cs.Checkpoints = append(cs.Checkpoints, CheckpointRef{ID: cp.ID, ItemID: cp.ItemID, CreatedAt: cp.CreatedAt})
	if !cs.completed(itemID) {
		cs.CompletedItemIDs = append(cs.CompletedItemIDs, itemID)
	}
	cs.CurrentItemID = ""
	if err := c.saveState(cs, meta); err != nil {
		return nil, err
	}

	c.markItemPassed(itemID, true)
	return cp, nil
}

// GetCheckpoint loads a full checkpoint record by id.
func (c *Controller) GetCheckpoint(id string) (*Checkpoint, error) {
	var cp Checkpoint
	if _, err := c.store.Load(checkpointDoc(id), store.SchemaCheckpoint, &cp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("checkpoint %s: %w", id, ErrCheckpointNotFound)
		}
		return nil, err
	}
	return &cp, nil
}

// Rollback reverts the run to the state just after the target
// checkpoint. target is a checkpoint id or RollbackLast.
//
// The truncation is atomic: the control state write is the commit
// point, and a missing target mutates nothing. Checkpoint records
// strictly after the target are pruned afterwards; a record the pruning
// pass misses is stale but harmless, since the index no longer refers
// to it. Rollback always leaves the run PAUSED so a human confirms
// before it resumes.
func (c *Controller) Rollback(target string) OpResult {
	cs, meta, err := c.loadState()
	if err != nil {
		return fail(err, err.Error())
	}

	idx := -1
	switch {
	case target == RollbackLast:
		idx = len(cs.Checkpoints) - 1
	default:
		for i, ref := range cs.Checkpoints {
			if ref.ID == target {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return fail(ErrCheckpointNotFound, fmt.Sprintf("checkpoint %q not found", target))
	}

	orphaned := append([]CheckpointRef(nil), cs.Checkpoints[idx+1:]...)

	kept := map[string]bool{}
	for _, ref := range cs.Checkpoints[:idx+1] {
		kept[ref.ItemID] = true
	}
	var completed []string
	for _, id := range cs.CompletedItemIDs {
		if kept[id] {
			completed = append(completed, id)
		}
	}
	if completed == nil {
		completed = []string{}
	}

	cs.Checkpoints = cs.Checkpoints[:idx+1]
	cs.CompletedItemIDs = completed
	cs.CurrentItemID = ""
	cs.State = StatePaused
	cs.PauseReason = fmt.Sprintf("rolled back to %s", cs.Checkpoints[idx].ID)
	if err := c.saveState(cs, meta); err != nil {
		return fail(err, err.Error())
	}

	// Prune orphaned records and reset the backlog flags for the
	// rolled-back items.
	for _, ref := range orphaned {
		if err := c.store.Delete(checkpointDoc(ref.ID)); err != nil {
			return fail(err, fmt.Sprintf("rolled back, but pruning %s failed: %v", ref.ID, err))
		}
		if !kept[ref.ItemID] {
			c.markItemPassed(ref.ItemID, false)
		}
	}

	return ok(fmt.Sprintf("rolled back to %s; run is paused", cs.Checkpoints[idx].ID))
}

// markItemPassed flips the passes flag on a backlog item. A missing
// backlog document is not an error; the control state alone remains
// authoritative for completion.
func (c *Controller) markItemPassed(itemID string, passed bool) {
	backlog, meta, err := c.store.LoadBacklog()
	if err != nil {
		return
	}
	item := backlog.Item(itemID)
	if item == nil || item.Passes == passed {
		return
	}
	item.Passes = passed
	c.store.SaveBacklog(backlog, meta)
}
