package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/control"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [reason...]",
	Short: "Pause the current run at the next item boundary",
	Long: `Request a pause. An in-flight runner picks the signal up and suspends
after the current item finishes; nothing is interrupted mid-item. If no
runner is active the control state is updated directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := strings.Join(args, " ")
		if reason == "" {
			reason = "paused by operator"
		}
		return dispatchControl(control.SignalPause, reason, func(c *control.Controller) control.OpResult {
			return c.Pause(reason)
		})
	},
}
