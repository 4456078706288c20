package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initProjectName string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a coxswain project",
	Long: `Initialize a directory for use with coxswain.

Creates the .coxswain state directory, a sample prd.json backlog, and a
.coxswain.yaml config template. The directory argument is optional and
defaults to the current directory.

Examples:
  coxswain init              # Initialize current directory
  coxswain init ./myproject  # Initialize specific directory
  coxswain init --force      # Overwrite existing scaffold files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing scaffold files")
	initCmd.Flags().StringVar(&initProjectName, "project-name", "", "Override auto-detected project name")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	projectName := initProjectName
	if projectName == "" {
		projectName = filepath.Base(absPath)
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (required for the API executor)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{stateDirName, filepath.Join(stateDirName, "runs"), filepath.Join(stateDirName, "logs")} {
		if err := os.MkdirAll(filepath.Join(absPath, dir), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .coxswain directory structure", color.FgGreen)

	if created, err := writeScaffold(filepath.Join(absPath, "prd.json"), samplePRD(projectName)); err != nil {
		return err
	} else if created {
		printStatus("✓", "Created sample prd.json backlog", color.FgGreen)
	} else {
		printStatus("⚠", "prd.json exists, left untouched (use --force to overwrite)", color.FgYellow)
	}

	if created, err := writeScaffold(filepath.Join(absPath, ".coxswain.yaml"), configTemplate); err != nil {
		return err
	} else if created {
		printStatus("✓", "Created .coxswain.yaml template", color.FgGreen)
	}

	if err := updateGitignore(absPath); err == nil {
		printStatus("✓", "Updated .gitignore with coxswain entries", color.FgGreen)
	}

	fmt.Printf("\n%s coxswain initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Describe your backlog in prd.json")
	fmt.Println("  2. Run 'coxswain classify' to preview the pipeline policy")
	fmt.Println("  3. Run 'coxswain run' to start")
	return nil
}

func printStatus(mark, message string, attr color.Attribute) {
	fmt.Printf("%s %s\n", color.New(attr).Sprint(mark), message)
}

// writeScaffold writes a scaffold file unless it already exists and
// --force was not given. Reports whether the file was written.
func writeScaffold(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil && !initForce {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

func samplePRD(projectName string) string {
	return fmt.Sprintf(`{
  "schema": 1,
  "seq": 0,
  "data": {
    "projectName": %q,
    "branchName": "main",
    "items": [
      {
        "id": "item-1",
        "title": "Example: add a health endpoint",
        "description": "Expose GET /healthz returning 200 with build info.",
        "acceptanceCriteria": [
          "GET /healthz returns 200",
          "Response body includes the version string"
        ],
        "priority": 1,
        "passes": false
      }
    ]
  }
}
`, projectName)
}

const configTemplate = `# coxswain project configuration
# Precedence: env vars > this file > ~/.config/coxswain/config.yaml > defaults

anthropic:
  # api_key: ${ANTHROPIC_API_KEY}
  # model: ""
  # use_bedrock: false
  # aws_region: us-west-2

executor:
  backend: api   # api | manual

classify:
  # keywords_file: .coxswain/keywords.yaml

gates:
  timeout: 5m

tui:
  refresh_rate: 500ms

logging:
  # debug_log: .coxswain/logs/run.log
`

func updateGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	existing, _ := os.ReadFile(path)
	if strings.Contains(string(existing), stateDirName+"/") {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		fmt.Fprintln(f)
	}
	fmt.Fprintln(f, stateDirName+"/")
	return nil
}
