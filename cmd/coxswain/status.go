package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/config"
	"github.com/coxlabs/coxswain/internal/control"
	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/internal/tui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current run",
	Long: `Display the control state, backlog progress, checkpoints, and flagged
recurring issues for a run. With --watch, opens a live view that refreshes
as the run documents change and can send pause/resume/cancel signals.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Open a live status view")
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	runID, st, err := resolveRun(root)
	if err != nil {
		return err
	}

	if statusWatch {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return tui.Run(runID, st, cfg.TUI.RefreshRate)
	}

	fmt.Printf("run %s\n", color.New(color.Bold).Sprint(runID))

	if pid, alive := st.LockHolder(); alive {
		fmt.Printf("  runner: active (pid %d)\n", pid)
	} else if pid != 0 {
		fmt.Printf("  runner: %s\n", color.YellowString("stale lock from pid %d; the run was interrupted", pid))
	}

	var cs control.ControlState
	if _, err := st.Load(store.DocControlState, store.SchemaControlState, &cs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("  state: not started")
			return nil
		}
		return err
	}

	fmt.Printf("  state: %s\n", colorState(cs.State))
	if cs.PauseReason != "" && cs.State == control.StatePaused {
		fmt.Printf("  reason: %s\n", cs.PauseReason)
	}
	if cs.CancelReason != "" && cs.State == control.StateCancelled {
		fmt.Printf("  reason: %s\n", cs.CancelReason)
	}
	if cs.CurrentItemID != "" {
		fmt.Printf("  current item: %s\n", cs.CurrentItemID)
	}

	if backlog, _, err := st.LoadBacklog(); err == nil {
		passed := 0
		for _, item := range backlog.Items {
			if item.Passes {
				passed++
			}
		}
		fmt.Printf("  items: %d/%d passed\n", passed, len(backlog.Items))
		if backlog.Classified() {
			fmt.Printf("  complexity: %s\n", backlog.Complexity)
		}
	}

	fmt.Printf("  checkpoints: %d\n", len(cs.Checkpoints))
	for _, ref := range cs.Checkpoints {
		fmt.Printf("    %s  %s  %s\n", ref.ID, ref.ItemID, ref.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if history, err := qa.OpenHistory(st).Current(); err == nil {
		fmt.Printf("  qa sessions: %d\n", len(history.Sessions))
		for _, ri := range history.RecurringIssues {
			if !ri.FlaggedForReview {
				continue
			}
			file := ri.File
			if file == "" {
				file = "(no file)"
			}
			fmt.Printf("  %s %s in %s has recurred %d times\n",
				color.YellowString("⚑"), ri.Type, file, ri.Occurrences)
		}
	}
	return nil
}

func colorState(state control.State) string {
	switch state {
	case control.StateRunning:
		return color.GreenString(string(state))
	case control.StatePaused:
		return color.YellowString(string(state))
	case control.StateCancelled:
		return color.RedString(string(state))
	case control.StateCompleted:
		return color.CyanString(string(state))
	default:
		return string(state)
	}
}
