package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/coxlabs/coxswain/internal/store"
)

// Controller mediates all mutation of the control state document. All
// operations are whole-document read-modify-write against the store;
// the store's sequence check turns racing writers into hard errors
// instead of silent overwrites.
type Controller struct {
	store *store.Store
	// now is injectable so tests control checkpoint ids and timestamps.
	now func() time.Time
}

// NewController creates a controller over the given run store.
func NewController(st *store.Store) *Controller {
	return &Controller{store: st, now: time.Now}
}

// loadState reads intervention.json, synthesizing a fresh default
// document when it is absent or corrupt.
func (c *Controller) loadState() (*ControlState, store.Meta, error) {
	var cs ControlState
	meta, err := c.store.Load(store.DocControlState, store.SchemaControlState, &cs)
	if errors.Is(err, store.ErrNotFound) {
		now := c.now().UTC()
		return &ControlState{
			State:            StateRunning,
			StartedAt:        now,
			LastUpdated:      now,
			CompletedItemIDs: []string{},
			Checkpoints:      []CheckpointRef{},
		}, store.Meta{}, nil
	}
	if err != nil {
		return nil, store.Meta{}, err
	}
	return &cs, meta, nil
}

// saveState writes intervention.json back, stamping LastUpdated.
func (c *Controller) saveState(cs *ControlState, meta store.Meta) error {
	cs.LastUpdated = c.now().UTC()
	_, err := c.store.Save(store.DocControlState, store.SchemaControlState, meta.Seq, cs)
	return err
}

// Current returns a copy of the persisted control state.
func (c *Controller) Current() (*ControlState, error) {
	cs, _, err := c.loadState()
	return cs, err
}

// Start initializes the control state for a fresh run, or returns the
// existing state when resuming.
func (c *Controller) Start() (*ControlState, error) {
	cs, meta, err := c.loadState()
	if err != nil {
		return nil, err
	}
	if !c.store.Exists(store.DocControlState) {
		if err := c.saveState(cs, meta); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Pause requests a pause. Only meaningful while RUNNING; it records the
// reason but does not interrupt an in-flight item.
func (c *Controller) Pause(reason string) OpResult {
	cs, meta, err := c.loadState()
	if err != nil {
		return fail(err, err.Error())
	}
	if cs.State != StateRunning {
		return fail(ErrInvalidState, fmt.Sprintf("cannot pause while %s", cs.State))
	}
	cs.State = StatePaused
	cs.PauseReason = reason
	if err := c.saveState(cs, meta); err != nil {
		return fail(err, err.Error())
	}
	return ok("pause requested; takes effect at the next item boundary")
}

// Resume returns the runner to RUNNING. Fails with an error result, not
// a panic, if the run is not paused.
func (c *Controller) Resume() OpResult {
	cs, meta, err := c.loadState()
	if err != nil {
		return fail(err, err.Error())
	}
	if cs.State != StatePaused {
		return fail(ErrInvalidState, fmt.Sprintf("cannot resume while %s", cs.State))
	}
	cs.State = StateRunning
	cs.PauseReason = ""
	if err := c.saveState(cs, meta); err != nil {
		return fail(err, err.Error())
	}
	return ok("resumed")
}

// Cancel moves the run to the terminal CANCELLED state. Callable from
// any non-terminal state and binding at the next item boundary.
// Cancelling never rolls back checkpoints; only Rollback does that.
func (c *Controller) Cancel(reason string) OpResult {
	cs, meta, err := c.loadState()
	if err != nil {
		return fail(err, err.Error())
	}
	if cs.State.Terminal() {
		return fail(ErrInvalidState, fmt.Sprintf("cannot cancel while %s", cs.State))
	}
	cs.State = StateCancelled
	cs.CancelReason = reason
	if err := c.saveState(cs, meta); err != nil {
		return fail(err, err.Error())
	}
	return ok("cancelled")
}

// Complete moves the run to the terminal COMPLETED state.
func (c *Controller) Complete() OpResult {
	cs, meta, err := c.loadState()
	if err != nil {
		return fail(err, err.Error())
	}
	if cs.State != StateRunning {
		return fail(ErrInvalidState, fmt.Sprintf("cannot complete while %s", cs.State))
	}
	cs.State = StateCompleted
	cs.CurrentItemID = ""
	if err := c.saveState(cs, meta); err != nil {
		return fail(err, err.Error())
	}
	return ok("completed")
}

// SetCurrentItem records the item the runner is about to work on.
func (c *Controller) SetCurrentItem(itemID string) error {
	cs, meta, err := c.loadState()
	if err != nil {
		return err
	}
	cs.CurrentItemID = itemID
	return c.saveState(cs, meta)
}

// ShouldPause reports whether a pause request is pending. Callers check
// this only at item boundaries.
func (c *Controller) ShouldPause() bool {
	cs, _, err := c.loadState()
	return err == nil && cs.State == StatePaused
}

// ShouldCancel reports whether the run has been cancelled.
func (c *Controller) ShouldCancel() bool {
	cs, _, err := c.loadState()
	return err == nil && cs.State == StateCancelled
}
