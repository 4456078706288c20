package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/coxlabs/coxswain/internal/store"
)

// SignalKind identifies an out-of-process control request.
type SignalKind string

const (
	// SignalPause requests a pause at the next item boundary.
	SignalPause SignalKind = "pause"
	// SignalResume requests a resume while the runner waits paused.
	SignalResume SignalKind = "resume"
	// SignalCancel requests cancellation at the next item boundary.
	SignalCancel SignalKind = "cancel"
)

// Signal files let the CLI talk to an in-flight runner without writing
// the control document itself, preserving the one-writer-per-document
// rule: the CLI drops a file under <run>/signals/, the runner consumes
// it at the next boundary.

// WriteSignal drops a signal file for the runner. The file body is the
// human-supplied reason.
func WriteSignal(st *store.Store, kind SignalKind, reason string) error {
	path := filepath.Join(st.Root(), "signals", string(kind))
	if err := os.WriteFile(path, []byte(reason), 0644); err != nil {
		return fmt.Errorf("write %s signal: %w", kind, err)
	}
	return nil
}

// ConsumeSignals applies any pending signal files to the control state
// and removes them. Called by the runner at item boundaries. Cancel wins
// over pause when both are pending.
func (c *Controller) ConsumeSignals() (applied []SignalKind, err error) {
	dir := filepath.Join(c.store.Root(), "signals")
	for _, kind := range []SignalKind{SignalCancel, SignalPause, SignalResume} {
		path := filepath.Join(dir, string(kind))
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		reason := strings.TrimSpace(string(raw))
		os.Remove(path)

		switch kind {
		case SignalCancel:
			c.Cancel(reason)
		case SignalPause:
			c.Pause(reason)
		case SignalResume:
			c.Resume()
		}
		applied = append(applied, kind)
	}
	return applied, nil
}

// SignalWatcher wakes the runner when a signal file lands, so a paused
// run reacts to resume/cancel without polling.
type SignalWatcher struct {
	watcher *fsnotify.Watcher
	events  chan SignalKind
	done    chan struct{}
}

// WatchSignals starts watching the run's signal directory.
func WatchSignals(st *store.Store) (*SignalWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create signal watcher: %w", err)
	}
	dir := filepath.Join(st.Root(), "signals")
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	sw := &SignalWatcher{
		watcher: watcher,
		events:  make(chan SignalKind, 8),
		done:    make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

func (sw *SignalWatcher) loop() {
	for {
		select {
		case <-sw.done:
			return
		case ev, okCh := <-sw.watcher.Events:
			if !okCh {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			kind := SignalKind(filepath.Base(ev.Name))
			switch kind {
			case SignalPause, SignalResume, SignalCancel:
				select {
				case sw.events <- kind:
				default:
				}
			}
		case _, okCh := <-sw.watcher.Errors:
			if !okCh {
				return
			}
		}
	}
}

// Events returns the channel of observed signals.
func (sw *SignalWatcher) Events() <-chan SignalKind {
	return sw.events
}

// Close stops the watcher.
func (sw *SignalWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
