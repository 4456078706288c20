package gates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/pkg/models"
)

func TestDetectProjectType(t *testing.T) {
	cases := []struct {
		marker string
		want   string
	}{
		{"go.mod", "go"},
		{"package.json", "node"},
		{"pyproject.toml", "python"},
		{"requirements.txt", "python"},
	}
	for _, tc := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, tc.marker), []byte("x"), 0644); err != nil {
			t.Fatalf("write marker: %v", err)
		}
		if got := NewRunner(dir).detectProjectType(); got != tc.want {
			t.Errorf("detectProjectType with %s = %q, want %q", tc.marker, got, tc.want)
		}
	}

	if got := NewRunner(t.TempDir()).detectProjectType(); got != "unknown" {
		t.Errorf("empty dir project type = %q, want unknown", got)
	}
}

func TestRunGates_UnknownProjectStaysUnknown(t *testing.T) {
	r := NewRunner(t.TempDir())
	results, err := r.RunGates(context.Background(), models.QADepthExtensive)
	if err != nil {
		t.Fatalf("RunGates failed: %v", err)
	}
	for _, gate := range []qa.GateName{qa.GateTypecheck, qa.GateLint, qa.GateTests} {
		if results.Status(gate) != qa.GateUnknown {
			t.Errorf("gate %s = %v, want unknown when no command applies", gate, results.Status(gate))
		}
	}
}

func TestRunGates_LightDepthSkipsTypecheckAndLint(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}

	// Light depth must not even attempt the typecheck and lint commands.
	r := NewRunner(dir)
	results, err := r.RunGates(context.Background(), models.QADepthLight)
	if err != nil {
		t.Fatalf("RunGates failed: %v", err)
	}
	if results.Typecheck != qa.GateUnknown || results.Lint != qa.GateUnknown {
		t.Errorf("light depth ran typecheck/lint: %+v", results)
	}
}

func TestGoTestCommand_RequiresTestFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	if cmd := testCommand("go", dir); cmd != nil {
		t.Errorf("test command without _test.go files = %v, want nil", cmd)
	}

	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n"), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	cmd := testCommand("go", dir)
	if len(cmd) == 0 || cmd[0] != "go" {
		t.Errorf("test command = %v, want go test", cmd)
	}
}

func TestHasGoTestFiles_SkipsHiddenAndVendor(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"vendor/dep", ".git/objects"} {
		path := filepath.Join(dir, filepath.FromSlash(sub))
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(path, "x_test.go"), []byte("package x\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if hasGoTestFiles(dir) {
		t.Error("vendored/hidden test files should not count")
	}
}

func TestHasGoTestFiles_DotNamedRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".dotfiles")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n"), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	if !hasGoTestFiles(dir) {
		t.Error("test files in a dot-named work directory should count")
	}
}
