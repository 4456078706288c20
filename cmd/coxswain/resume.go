package main

import (
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/control"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchControl(control.SignalResume, "", func(c *control.Controller) control.OpResult {
			return c.Resume()
		})
	},
}
