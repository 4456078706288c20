// Package control implements the execution control state machine and the
// checkpoint store for a run. The persisted ControlState document is the
// sole source of truth for where the runner is; pause and cancel are
// requests honored at item boundaries, never preemptions.
package control

import (
	"encoding/json"
	"errors"
	"time"
)

// State is the execution state of a run.
type State string

const (
	// StateRunning means the runner is actively processing items.
	StateRunning State = "RUNNING"
	// StatePaused means a pause was requested or a rollback completed;
	// the runner stops at the next item boundary.
	StatePaused State = "PAUSED"
	// StateCancelled is terminal; the run was cancelled.
	StateCancelled State = "CANCELLED"
	// StateCompleted is terminal; every item passed.
	StateCompleted State = "COMPLETED"
)

// Terminal returns true for states no transition leaves.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// Sentinel errors surfaced through OpResult messages.
var (
	// ErrInvalidState indicates an operation that is not legal in the
	// current state, e.g. resume while not paused.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrCheckpointNotFound indicates a rollback target that does not
	// exist; the state is left untouched.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// OpResult is the structured outcome of a control operation. Operator
// errors are values, never panics: callers decide whether to surface or
// retry.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Err carries the sentinel for programmatic handling.
	Err error `json:"-"`
}

func ok(msg string) OpResult {
	return OpResult{Success: true, Message: msg}
}

func fail(err error, msg string) OpResult {
	return OpResult{Success: false, Message: msg, Err: err}
}

// CheckpointRef is the lightweight index entry stored inside
// ControlState. Every ref must have a corresponding Checkpoint record;
// the converse need not hold mid-rollback.
type CheckpointRef struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Checkpoint is the full durable snapshot recorded after a work item
// completes, stored as checkpoints/<id>.json.
type Checkpoint struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"itemId"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ControlState is the persisted intervention.json document.
type ControlState struct {
	State            State           `json:"state"`
	StartedAt        time.Time       `json:"startedAt"`
	LastUpdated      time.Time       `json:"lastUpdated"`
	PauseReason      string          `json:"pauseReason,omitempty"`
	CancelReason     string          `json:"cancelReason,omitempty"`
	CurrentItemID    string          `json:"currentItemId,omitempty"`
	CompletedItemIDs []string        `json:"completedItemIds"`
	Checkpoints      []CheckpointRef `json:"checkpoints"`
}

// completed reports whether an item id is already recorded as completed.
func (cs *ControlState) completed(itemID string) bool {
	for _, id := range cs.CompletedItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// LastCheckpoint returns the most recent checkpoint ref, or nil.
func (cs *ControlState) LastCheckpoint() *CheckpointRef {
	if len(cs.Checkpoints) == 0 {
		return nil
	}
	return &cs.Checkpoints[len(cs.Checkpoints)-1]
}
