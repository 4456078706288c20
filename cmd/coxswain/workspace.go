package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coxlabs/coxswain/internal/store"
)

const (
	stateDirName   = ".coxswain"
	currentRunFile = "current-run"
)

// projectRoot walks up from the working directory to the nearest
// .coxswain directory, defaulting to the working directory itself.
func projectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, stateDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

func stateDir(root string) string {
	return filepath.Join(root, stateDirName)
}

func runsDir(root string) string {
	return filepath.Join(stateDir(root), "runs")
}

func runDir(root, runID string) string {
	return filepath.Join(runsDir(root), runID)
}

// currentRunID reads the recorded current run, falling back to the most
// recently modified run directory.
func currentRunID(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir(root), currentRunFile))
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	entries, err := os.ReadDir(runsDir(root))
	if err != nil {
		return "", fmt.Errorf("no runs found; start one with 'coxswain run'")
	}
	type candidate struct {
		id    string
		mtime int64
	}
	var candidates []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{entry.Name(), info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no runs found; start one with 'coxswain run'")
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mtime > candidates[j].mtime })
	return candidates[0].id, nil
}

// setCurrentRun records the run the CLI operates on by default.
func setCurrentRun(root, runID string) error {
	if err := os.MkdirAll(stateDir(root), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir(root), currentRunFile), []byte(runID+"\n"), 0644)
}

// resolveRun opens the store for the requested run, honoring --run and
// falling back to the current run.
func resolveRun(root string) (string, *store.Store, error) {
	runID := runFlag
	if runID == "" {
		var err error
		runID, err = currentRunID(root)
		if err != nil {
			return "", nil, err
		}
	}
	dir := runDir(root, runID)
	if _, err := os.Stat(dir); err != nil {
		return "", nil, fmt.Errorf("run %s not found under %s", runID, runsDir(root))
	}
	st, err := store.New(dir)
	if err != nil {
		return "", nil, err
	}
	return runID, st, nil
}
