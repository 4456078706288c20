package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked indicates another live process holds the run lock.
var ErrLocked = errors.New("run directory is locked by another process")

// lockFileName is the advisory lock file inside a run directory.
const lockFileName = "run.lock"

// Lock acquires the advisory single-writer lock for this run directory.
// The design assumes exactly one writer per run; the lock makes that
// assumption explicit instead of relying on callers to behave.
//
// A lock file whose recorded pid is no longer alive is considered stale
// and is reclaimed.
func (s *Store) Lock() error {
	path := filepath.Join(s.root, lockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}

		pid, readErr := readLockPID(path)
		if readErr == nil && pid > 0 && isProcessAlive(pid) {
			return fmt.Errorf("held by pid %d: %w", pid, ErrLocked)
		}
		// Stale lock: owner is gone. Remove and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return ErrLocked
}

// Unlock releases the run lock if this process holds it.
func (s *Store) Unlock() error {
	path := filepath.Join(s.root, lockFileName)
	pid, err := readLockPID(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return fmt.Errorf("lock held by pid %d, not this process", pid)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// LockHolder returns the pid recorded in the lock file and whether that
// process is still alive. A zero pid means the run is unlocked.
func (s *Store) LockHolder() (pid int, alive bool) {
	pid, err := readLockPID(filepath.Join(s.root, lockFileName))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, isProcessAlive(pid)
}

func readLockPID(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse lock file: %w", err)
	}
	return pid, nil
}

// isProcessAlive checks whether a process with the given pid exists.
func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 performs the permission/existence check without
	// delivering anything.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
