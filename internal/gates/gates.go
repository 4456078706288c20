// Package gates runs the external quality-gate commands (typecheck,
// lint, tests) for the project under work and maps their exit status to
// the passed/failed/unknown contract the validation loop consumes. It
// lives outside the control plane: the loop itself never executes
// commands.
package gates

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/pkg/models"
)

// Runner executes quality gates in a work directory.
type Runner struct {
	workDir string
	timeout time.Duration
}

// NewRunner creates a gate runner for the given work directory.
func NewRunner(workDir string) *Runner {
	return &Runner{
		workDir: workDir,
		timeout: 5 * time.Minute,
	}
}

// SetTimeout sets the timeout for each individual gate command.
func (r *Runner) SetTimeout(d time.Duration) {
	r.timeout = d
}

// RunGates runs the gates the QA depth requires and reports their
// statuses. Gates the depth does not require, and gates with no
// applicable command for the project type, stay unknown — a gate never
// run is not considered failed.
func (r *Runner) RunGates(ctx context.Context, depth models.QADepth) (qa.GateResults, error) {
	results := qa.GateResults{
		Typecheck: qa.GateUnknown,
		Lint:      qa.GateUnknown,
		Tests:     qa.GateUnknown,
	}

	project := r.detectProjectType()
	results.Tests = r.run(ctx, testCommand(project, r.workDir))
	if depth == models.QADepthLight {
		return results, nil
	}

	results.Typecheck = r.run(ctx, typecheckCommand(project))
	results.Lint = r.run(ctx, lintCommand(project))
	return results, nil
}

// run executes one gate command, mapping its outcome to a GateStatus.
// A nil command means the gate does not apply and stays unknown.
func (r *Runner) run(ctx context.Context, argv []string) qa.GateStatus {
	if len(argv) == 0 {
		return qa.GateUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return qa.GateFailed
	}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			return qa.GateFailed
		}
		// Command missing or failed to start: the gate never ran.
		return qa.GateUnknown
	}
	return qa.GatePassed
}

// detectProjectType determines the project type in the work directory.
func (r *Runner) detectProjectType() string {
	if r.fileExists("go.mod") {
		return "go"
	}
	if r.fileExists("package.json") {
		return "node"
	}
	for _, marker := range []string{"pyproject.toml", "setup.py", "requirements.txt"} {
		if r.fileExists(marker) {
			return "python"
		}
	}
	return "unknown"
}

func (r *Runner) fileExists(name string) bool {
	_, err := os.Stat(filepath.Join(r.workDir, name))
	return err == nil
}

func testCommand(project, workDir string) []string {
	switch project {
	case "go":
		if !hasGoTestFiles(workDir) {
			return nil
		}
		return []string{"go", "test", "./..."}
	case "node":
		return []string{"npm", "test"}
	case "python":
		return []string{"python", "-m", "pytest"}
	default:
		return nil
	}
}

func typecheckCommand(project string) []string {
	switch project {
	case "go":
		return []string{"go", "build", "./..."}
	case "node":
		return []string{"npx", "tsc", "--noEmit"}
	case "python":
		return []string{"mypy", "."}
	default:
		return nil
	}
}

func lintCommand(project string) []string {
	switch project {
	case "go":
		if commandExists("golangci-lint") {
			return []string{"golangci-lint", "run", "./..."}
		}
		return []string{"go", "vet", "./..."}
	case "node":
		return []string{"npm", "run", "lint"}
	case "python":
		if commandExists("ruff") {
			return []string{"ruff", "check", "."}
		}
		return nil
	default:
		return nil
	}
}

// hasGoTestFiles checks whether any _test.go file exists outside vendor
// and hidden directories.
func hasGoTestFiles(workDir string) bool {
	found := false
	filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		// The root itself may be dot-named; only prune subdirectories.
		if info.IsDir() && path != workDir && (info.Name() == "vendor" || strings.HasPrefix(info.Name(), ".")) {
			return filepath.SkipDir
		}
		if !info.IsDir() && strings.HasSuffix(path, "_test.go") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
