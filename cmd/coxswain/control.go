package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/coxlabs/coxswain/internal/control"
)

// dispatchControl routes a control request either through a signal file
// (when a live runner holds the lock) or directly against the control
// state. The signal path keeps one writer per document while the runner
// is in flight.
func dispatchControl(kind control.SignalKind, reason string, direct func(*control.Controller) control.OpResult) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	runID, st, err := resolveRun(root)
	if err != nil {
		return err
	}

	if pid, alive := st.LockHolder(); alive {
		if err := control.WriteSignal(st, kind, reason); err != nil {
			return err
		}
		fmt.Printf("%s %s signal sent to run %s (pid %d); applied at the next item boundary\n",
			color.GreenString("✓"), kind, runID, pid)
		return nil
	}

	res := direct(control.NewController(st))
	if !res.Success {
		fmt.Printf("%s %s\n", color.RedString("✗"), res.Message)
		return res.Err
	}
	fmt.Printf("%s %s\n", color.GreenString("✓"), res.Message)
	return nil
}
