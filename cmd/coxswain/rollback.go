package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/control"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [checkpoint-id|last]",
	Short: "Roll the run back to a checkpoint",
	Long: `Restore the run to the state at a checkpoint. Later checkpoints are
discarded, items completed after it are marked not passed, and the run is
left paused for review. With no argument (or "last") the most recent
checkpoint is used.

A rollback cannot run while a runner is in flight; pause or cancel first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := control.RollbackLast
		if len(args) > 0 {
			target = args[0]
		}

		root, err := projectRoot()
		if err != nil {
			return err
		}
		runID, st, err := resolveRun(root)
		if err != nil {
			return err
		}
		if pid, alive := st.LockHolder(); alive {
			return fmt.Errorf("run %s is active (pid %d); pause it before rolling back", runID, pid)
		}

		res := control.NewController(st).Rollback(target)
		if !res.Success {
			fmt.Printf("%s %s\n", color.RedString("✗"), res.Message)
			return res.Err
		}
		fmt.Printf("%s %s\n", color.GreenString("✓"), res.Message)
		fmt.Println("run is paused; 'coxswain run --resume' continues from here")
		return nil
	},
}
