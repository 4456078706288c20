package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/control"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [reason...]",
	Short: "Cancel the current run",
	Long: `Request cancellation. An in-flight runner stops at the next item
boundary; completed work and checkpoints are preserved. Cancellation is
terminal: the run cannot be resumed afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := strings.Join(args, " ")
		if reason == "" {
			reason = "cancelled by operator"
		}
		return dispatchControl(control.SignalCancel, reason, func(c *control.Controller) control.OpResult {
			return c.Cancel(reason)
		})
	},
}
