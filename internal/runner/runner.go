package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coxlabs/coxswain/internal/classify"
	"github.com/coxlabs/coxswain/internal/control"
	"github.com/coxlabs/coxswain/internal/memory"
	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

// ErrRunCancelled is returned when the run ends because of a cancel
// request. It is an expected outcome, not a failure.
var ErrRunCancelled = errors.New("run cancelled")

// ErrRunFinished is returned when Run is invoked on a run that already
// reached a terminal state. Driving it again would re-archive its QA
// history into the cross-run store.
var ErrRunFinished = errors.New("run already finished")

// checkpointData is the snapshot stored with each checkpoint, enough
// context to resume from after the item.
type checkpointData struct {
	ItemID     string            `json:"itemId"`
	Iterations int               `json:"iterations"`
	Evidence   map[string]string `json:"evidence,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// Runner drives one run to completion.
type Runner struct {
	RunID      string
	store      *store.Store
	controller *control.Controller
	history    *qa.History
	classifier *classify.Classifier
	executor   Executor
	gates      GateRunner
	prompter   EscalationPrompter
	memoryDB   *memory.DB
	logger     Logger

	// pausePoll bounds how long a paused runner sleeps between state
	// checks when no signal event arrives.
	pausePoll time.Duration

	// skipped holds item ids a human skipped this invocation, so the
	// scheduler does not hand them out again. Deliberately in-memory: a
	// later resume retries skipped items.
	skipped map[string]bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithMemory attaches the cross-run archive for tracker seeding and
// session archival.
func WithMemory(db *memory.DB) Option {
	return func(r *Runner) { r.memoryDB = db }
}

// WithLogger sets the debug logger.
func WithLogger(l Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClassifier overrides the default classifier, e.g. with keyword
// weight overrides loaded from configuration.
func WithClassifier(c *classify.Classifier) Option {
	return func(r *Runner) { r.classifier = c }
}

// New creates a runner over a run store with its external
// collaborators.
func New(runID string, st *store.Store, executor Executor, gates GateRunner, prompter EscalationPrompter, opts ...Option) *Runner {
	r := &Runner{
		RunID:      runID,
		store:      st,
		controller: control.NewController(st),
		history:    qa.OpenHistory(st),
		classifier: classify.New(),
		executor:   executor,
		gates:      gates,
		prompter:   prompter,
		logger:     nopLogger{},
		pausePoll:  2 * time.Second,
		skipped:    map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Controller exposes the run's control state machine.
func (r *Runner) Controller() *control.Controller {
	return r.controller
}

// Run executes the backlog until it completes, pauses indefinitely, is
// cancelled, or a human aborts. It acquires the single-writer run lock
// for the duration.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.store.Lock(); err != nil {
		return err
	}
	defer r.store.Unlock()

	// A terminal run was archived when it ended; driving it again would
	// duplicate its sessions and recurring-issue deltas in the archive.
	cs, err := r.controller.Current()
	if err != nil {
		return err
	}
	if cs.State.Terminal() {
		return fmt.Errorf("run %s is %s: %w", r.RunID, cs.State, ErrRunFinished)
	}

	result, err := r.classifier.ClassifyAndPersist(r.store, false)
	if err != nil {
		return fmt.Errorf("classify backlog: %w", err)
	}
	policy := result.Recommendation
	r.logger.Log("classified backlog: level=%s score=%.1f qaDepth=%s", result.Level, result.Score, policy.QADepth)

	if _, err := r.controller.Start(); err != nil {
		return fmt.Errorf("start control state: %w", err)
	}
	if err := r.seedTracker(); err != nil {
		r.logger.Log("tracker seeding failed: %v", err)
	}

	watcher, err := control.WatchSignals(r.store)
	if err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}
	defer watcher.Close()

	for {
		if err := r.checkBoundary(ctx, watcher); err != nil {
			return err
		}

		item := r.nextItem()
		if item == nil {
			break
		}

		if err := r.controller.SetCurrentItem(item.ID); err != nil {
			return err
		}
		done, err := r.runItem(ctx, *item, policy)
		if err != nil {
			return err
		}
		if !done {
			// Item was skipped by a human; annotate and continue.
			r.skipped[item.ID] = true
			r.annotateSkip(item.ID)
		}
	}

	if res := r.controller.Complete(); !res.Success {
		return fmt.Errorf("complete run: %s", res.Message)
	}
	r.logger.Log("run %s completed", r.RunID)
	return r.archive()
}

// nextItem returns the first backlog item that has not passed, or nil.
func (r *Runner) nextItem() *models.WorkItem {
	backlog, _, err := r.store.LoadBacklog()
	if err != nil {
		return nil
	}
	for i := range backlog.Items {
		if !backlog.Items[i].Passes && !r.skipped[backlog.Items[i].ID] {
			item := backlog.Items[i]
			return &item
		}
	}
	return nil
}

// checkBoundary applies pending signals and blocks while the run is
// paused. This is the only suspension point: nothing interrupts an
// in-flight item.
func (r *Runner) checkBoundary(ctx context.Context, watcher *control.SignalWatcher) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.controller.ConsumeSignals()

		cs, err := r.controller.Current()
		if err != nil {
			return err
		}
		switch cs.State {
		case control.StateCancelled:
			r.logger.Log("run %s cancelled: %s", r.RunID, cs.CancelReason)
			r.archive()
			return ErrRunCancelled
		case control.StatePaused:
			r.logger.Log("run %s paused: %s", r.RunID, cs.PauseReason)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-watcher.Events():
			case <-time.After(r.pausePoll):
			}
		default:
			return nil
		}
	}
}

// runItem drives one item through the validation loop. Returns done =
// false when a human chose to skip the item.
func (r *Runner) runItem(ctx context.Context, item models.WorkItem, policy models.PipelinePolicy) (done bool, err error) {
	session := qa.NewSession(item, policy.QADepth, r.history)
	r.logger.Log("item %s: starting validation session (qaDepth=%s)", item.ID, policy.QADepth)

	var guidance string
	if policy.ResearchPhase {
		if researcher, capable := r.executor.(Researcher); capable {
			notes, rerr := researcher.Research(ctx, item)
			if rerr != nil {
				r.logger.Log("item %s: research phase failed: %v", item.ID, rerr)
			} else {
				guidance = notes
			}
		}
	}

	var feedback []qa.Issue
	for {
		impl, ierr := r.executor.Implement(ctx, item, feedback, guidance)
		if ierr != nil {
			session.Complete("executor_error")
			return false, fmt.Errorf("implement %s: %w", item.ID, ierr)
		}

		if policy.SelfCritique {
			if critic, capable := r.executor.(SelfCritic); capable {
				if improved, cerr := critic.Critique(ctx, item, impl); cerr == nil {
					impl = improved
				}
			}
		}

		gates, gerr := r.gates.RunGates(ctx, policy.QADepth)
		if gerr != nil {
			session.Complete("gate_error")
			return false, fmt.Errorf("run gates for %s: %w", item.ID, gerr)
		}

		outcome := session.RunIteration(item, impl, gates)
		if outcome.Passed {
			if err := session.Complete("passed"); err != nil {
				return false, err
			}
			_, cperr := r.controller.CreateCheckpoint(item.ID, checkpointData{
				ItemID:     item.ID,
				Iterations: session.CurrentIteration,
				Evidence:   impl.Evidence,
			})
			if cperr != nil {
				return false, fmt.Errorf("checkpoint %s: %w", item.ID, cperr)
			}
			r.logger.Log("item %s: passed after %d iteration(s)", item.ID, session.CurrentIteration)
			return true, nil
		}

		if outcome.ShouldEscalate {
			report := qa.EscalateToHuman(session.LastIssues(), item, session.CurrentIteration)
			resp, perr := r.prompter.Prompt(ctx, report)
			if perr != nil {
				session.Complete("escalation_failed")
				return false, fmt.Errorf("escalate %s: %w", item.ID, perr)
			}
			switch resp.Option {
			case qa.OptionGuidance:
				// Fresh session with human guidance folded in.
				session.Complete("escalated_guidance")
				session = qa.NewSession(item, policy.QADepth, r.history)
				guidance = resp.Message
				feedback = nil
				continue
			case qa.OptionSkip:
				session.Complete("escalated_skip")
				r.logger.Log("item %s: skipped by human after escalation", item.ID)
				return false, nil
			default:
				session.Complete("escalated_abort")
				r.controller.Cancel(fmt.Sprintf("aborted by human during %s escalation", item.ID))
				r.archive()
				return false, ErrRunCancelled
			}
		}

		feedback = append(outcome.Fixed, outcome.Remaining...)
	}
}

// annotateSkip records a skip in the backlog item's notes.
func (r *Runner) annotateSkip(itemID string) {
	backlog, meta, err := r.store.LoadBacklog()
	if err != nil {
		return
	}
	item := backlog.Item(itemID)
	if item == nil {
		return
	}
	if item.Notes != "" {
		item.Notes += "\n"
	}
	item.Notes += "skipped by human after escalation"
	r.store.SaveBacklog(backlog, meta)
}

// seedTracker pre-populates the recurring-issue tracker from the
// cross-run archive.
func (r *Runner) seedTracker() error {
	if r.memoryDB == nil {
		return nil
	}
	carried, err := r.memoryDB.CarriedRecurring()
	if err != nil {
		return err
	}
	return r.history.Seed(carried)
}

// archive copies the run's QA history into the cross-run archive.
func (r *Runner) archive() error {
	if r.memoryDB == nil {
		return nil
	}
	history, err := r.history.Current()
	if err != nil {
		return err
	}
	return r.memoryDB.ArchiveRun(r.RunID, history)
}
