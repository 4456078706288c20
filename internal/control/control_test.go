package control

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

func setupController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return NewController(st), st
}

func seedBacklog(t *testing.T, st *store.Store, itemIDs ...string) {
	t.Helper()
	b := &models.Backlog{ProjectName: "demo"}
	for _, id := range itemIDs {
		b.Items = append(b.Items, models.WorkItem{ID: id, Title: "item " + id})
	}
	if _, err := st.SaveBacklog(b, store.Meta{}); err != nil {
		t.Fatalf("seed backlog: %v", err)
	}
}

func TestStart_DefaultsToRunning(t *testing.T) {
	c, st := setupController(t)
	cs, err := c.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if cs.State != StateRunning {
		t.Errorf("state = %v, want RUNNING", cs.State)
	}
	if !st.Exists(store.DocControlState) {
		t.Error("Start did not persist the control state")
	}
}

func TestPauseResume(t *testing.T) {
	c, _ := setupController(t)
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res := c.Pause("coffee break")
	if !res.Success {
		t.Fatalf("Pause failed: %s", res.Message)
	}
	cs, _ := c.Current()
	if cs.State != StatePaused || cs.PauseReason != "coffee break" {
		t.Errorf("after pause: %+v", cs)
	}

	// Pausing again is an invalid transition, reported, not panicked.
	res = c.Pause("again")
	if res.Success {
		t.Error("second Pause should fail")
	}
	if !errors.Is(res.Err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", res.Err)
	}

	res = c.Resume()
	if !res.Success {
		t.Fatalf("Resume failed: %s", res.Message)
	}
	cs, _ = c.Current()
	if cs.State != StateRunning || cs.PauseReason != "" {
		t.Errorf("after resume: %+v", cs)
	}

	// Resume while running is invalid.
	if res := c.Resume(); res.Success {
		t.Error("Resume while running should fail")
	}
}

func TestCancel_TerminalFromAnyNonTerminal(t *testing.T) {
	c, _ := setupController(t)
	c.Start()
	c.Pause("hold")

	res := c.Cancel("abandoning")
	if !res.Success {
		t.Fatalf("Cancel from paused failed: %s", res.Message)
	}
	cs, _ := c.Current()
	if cs.State != StateCancelled || cs.CancelReason != "abandoning" {
		t.Errorf("after cancel: %+v", cs)
	}

	// Terminal states reject everything.
	if res := c.Cancel("again"); res.Success {
		t.Error("Cancel after cancel should fail")
	}
	if res := c.Resume(); res.Success {
		t.Error("Resume after cancel should fail")
	}
	if res := c.Pause("x"); res.Success {
		t.Error("Pause after cancel should fail")
	}
	if _, err := c.CreateCheckpoint("item-1", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("CreateCheckpoint after cancel = %v, want ErrInvalidState", err)
	}
}

func TestComplete_OnlyFromRunning(t *testing.T) {
	c, _ := setupController(t)
	c.Start()
	c.Pause("hold")
	if res := c.Complete(); res.Success {
		t.Error("Complete while paused should fail")
	}
	c.Resume()
	if res := c.Complete(); !res.Success {
		t.Errorf("Complete failed: %s", res.Message)
	}
}

func TestCreateCheckpoint(t *testing.T) {
	c, st := setupController(t)
	seedBacklog(t, st, "item-1", "item-2")
	c.Start()
	c.SetCurrentItem("item-1")

	cp, err := c.CreateCheckpoint("item-1", map[string]int{"iterations": 2})
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}
	if cp.ID == "" || cp.ItemID != "item-1" {
		t.Errorf("checkpoint = %+v", cp)
	}
	if !st.Exists(filepath.Join("checkpoints", cp.ID+".json")) {
		t.Error("checkpoint record not written")
	}

	cs, _ := c.Current()
	if len(cs.Checkpoints) != 1 || cs.Checkpoints[0].ID != cp.ID {
		t.Errorf("checkpoint index = %+v", cs.Checkpoints)
	}
	if len(cs.CompletedItemIDs) != 1 || cs.CompletedItemIDs[0] != "item-1" {
		t.Errorf("completed = %v", cs.CompletedItemIDs)
	}
	if cs.CurrentItemID != "" {
		t.Errorf("current item not cleared: %q", cs.CurrentItemID)
	}

	backlog, _, _ := st.LoadBacklog()
	if !backlog.Item("item-1").Passes {
		t.Error("backlog item not marked passed")
	}

	got, err := c.GetCheckpoint(cp.ID)
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if got.ItemID != "item-1" || string(got.Data) == "" {
		t.Errorf("loaded checkpoint = %+v", got)
	}
}

func TestCheckpointIDs_SameMillisecond(t *testing.T) {
	c, st := setupController(t)
	seedBacklog(t, st, "item-1", "item-2")
	frozen := time.UnixMilli(1700000000000)
	c.now = func() time.Time { return frozen }
	c.Start()

	cp1, err := c.CreateCheckpoint("item-1", nil)
	if err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	cp2, err := c.CreateCheckpoint("item-2", nil)
	if err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}
	if cp1.ID == cp2.ID {
		t.Fatalf("checkpoint ids collide: %s", cp1.ID)
	}
	if cp1.ID != "cp-1700000000000" || cp2.ID != "cp-1700000000001" {
		t.Errorf("ids = %s, %s", cp1.ID, cp2.ID)
	}
}

func TestRollback_LastUndoesCheckpoint(t *testing.T) {
	c, st := setupController(t)
	seedBacklog(t, st, "item-1", "item-2")
	c.Start()

	cp1, _ := c.CreateCheckpoint("item-1", nil)
	cp2, _ := c.CreateCheckpoint("item-2", nil)

	res := c.Rollback(RollbackLast)
	if !res.Success {
		t.Fatalf("Rollback failed: %s", res.Message)
	}

	cs, _ := c.Current()
	if cs.State != StatePaused {
		t.Errorf("state after rollback = %v, want PAUSED", cs.State)
	}
	if len(cs.Checkpoints) != 2 {
		t.Errorf("rollback to last should keep both checkpoints, got %d", len(cs.Checkpoints))
	}

	// Rolling back to the first checkpoint drops the second.
	res = c.Rollback(cp1.ID)
	if !res.Success {
		t.Fatalf("Rollback to %s failed: %s", cp1.ID, res.Message)
	}
	cs, _ = c.Current()
	if len(cs.Checkpoints) != 1 || cs.Checkpoints[0].ID != cp1.ID {
		t.Errorf("checkpoints = %+v", cs.Checkpoints)
	}
	if len(cs.CompletedItemIDs) != 1 || cs.CompletedItemIDs[0] != "item-1" {
		t.Errorf("completed = %v", cs.CompletedItemIDs)
	}
	if st.Exists(filepath.Join("checkpoints", cp2.ID+".json")) {
		t.Error("orphaned checkpoint record not pruned")
	}

	backlog, _, _ := st.LoadBacklog()
	if !backlog.Item("item-1").Passes {
		t.Error("item-1 should remain passed")
	}
	if backlog.Item("item-2").Passes {
		t.Error("item-2 should be reset to not passed")
	}
}

func TestRollback_MissingTargetMutatesNothing(t *testing.T) {
	c, st := setupController(t)
	seedBacklog(t, st, "item-1")
	c.Start()
	c.CreateCheckpoint("item-1", nil)

	before, err := os.ReadFile(filepath.Join(st.Root(), store.DocControlState))
	if err != nil {
		t.Fatalf("read control state: %v", err)
	}

	res := c.Rollback("cp-does-not-exist")
	if res.Success {
		t.Fatal("rollback to missing checkpoint should fail")
	}
	if !errors.Is(res.Err, ErrCheckpointNotFound) {
		t.Errorf("err = %v, want ErrCheckpointNotFound", res.Err)
	}

	after, err := os.ReadFile(filepath.Join(st.Root(), store.DocControlState))
	if err != nil {
		t.Fatalf("read control state: %v", err)
	}
	if string(before) != string(after) {
		t.Error("failed rollback mutated the control state document")
	}
}

func TestRollback_NoCheckpoints(t *testing.T) {
	c, _ := setupController(t)
	c.Start()
	if res := c.Rollback(RollbackLast); res.Success {
		t.Error("rollback with no checkpoints should fail")
	}
}

func TestSignals_ConsumeAtBoundary(t *testing.T) {
	c, st := setupController(t)
	c.Start()

	if err := WriteSignal(st, SignalPause, "from another terminal"); err != nil {
		t.Fatalf("WriteSignal failed: %v", err)
	}
	applied, err := c.ConsumeSignals()
	if err != nil {
		t.Fatalf("ConsumeSignals failed: %v", err)
	}
	if len(applied) != 1 || applied[0] != SignalPause {
		t.Errorf("applied = %v, want [pause]", applied)
	}
	cs, _ := c.Current()
	if cs.State != StatePaused || cs.PauseReason != "from another terminal" {
		t.Errorf("after signal: %+v", cs)
	}

	// Signal files are removed once consumed.
	names, _ := st.ListDir("signals")
	if len(names) != 0 {
		t.Errorf("signal files left behind: %v", names)
	}
}

func TestSignals_CancelWinsOverPauseAndResume(t *testing.T) {
	c, st := setupController(t)
	c.Start()

	WriteSignal(st, SignalPause, "p")
	WriteSignal(st, SignalCancel, "c")
	WriteSignal(st, SignalResume, "")

	applied, err := c.ConsumeSignals()
	if err != nil {
		t.Fatalf("ConsumeSignals failed: %v", err)
	}
	if len(applied) == 0 || applied[0] != SignalCancel {
		t.Errorf("applied = %v, want cancel first", applied)
	}
	cs, _ := c.Current()
	if cs.State != StateCancelled {
		t.Errorf("state = %v, want CANCELLED", cs.State)
	}
}
