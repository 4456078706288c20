package main

import (
	"os"

	"github.com/spf13/cobra"
)

var runFlag string

var rootCmd = &cobra.Command{
	Use:   "coxswain",
	Short: "Control plane for autonomous code-change runs",
	Long: `Coxswain steers an autonomous implementation agent through a backlog:
it classifies the work, validates every change through a bounded QA loop,
checkpoints progress after each passing item, and escalates to a human
when automated remediation stalls.

State lives in .coxswain/runs/<run-id>/ as plain JSON documents, so a run
can be inspected, paused, resumed, rolled back, or cancelled from a second
terminal while the runner is in flight.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runFlag, "run", "", "Run ID to operate on (defaults to the current run)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
