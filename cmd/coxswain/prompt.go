package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/pkg/models"
)

// cliPrompter surfaces escalation reports on the terminal and reads the
// operator's decision from stdin.
type cliPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newCLIPrompter() *cliPrompter {
	return &cliPrompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (p *cliPrompter) Prompt(ctx context.Context, report qa.EscalationReport) (qa.HumanResponse, error) {
	fmt.Fprintf(p.out, "\n%s %s (%s) needs help after %d attempt(s)\n",
		color.RedString("✗"), report.ItemTitle, report.ItemID, report.Attempts)
	for _, issue := range report.Issues {
		fmt.Fprintf(p.out, "  - [%s] %s: %s", issue.Severity, issue.Type, issue.Description)
		if issue.File != "" {
			fmt.Fprintf(p.out, " (%s)", issue.File)
		}
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "\n%s %s\n", color.CyanString("recommendation:"), report.Recommendation)
	fmt.Fprintf(p.out, "\n[g] provide guidance and retry  [s] skip this item  [a] abort the run\n")

	for {
		if err := ctx.Err(); err != nil {
			return qa.HumanResponse{Option: qa.OptionAbort}, err
		}
		fmt.Fprint(p.out, "choice> ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			return qa.HumanResponse{Option: qa.OptionAbort}, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "g", "guidance":
			fmt.Fprint(p.out, "guidance> ")
			guidance, err := p.in.ReadString('\n')
			if err != nil {
				return qa.HumanResponse{Option: qa.OptionAbort}, err
			}
			return qa.HumanResponse{Option: qa.OptionGuidance, Message: strings.TrimSpace(guidance)}, nil
		case "s", "skip":
			return qa.HumanResponse{Option: qa.OptionSkip}, nil
		case "a", "abort":
			return qa.HumanResponse{Option: qa.OptionAbort}, nil
		default:
			fmt.Fprintln(p.out, "enter g, s, or a")
		}
	}
}

// manualExecutor is the human-in-the-loop backend: the operator makes
// the change themselves, then reports which criteria are done. Useful
// for dry-running the control plane without an API key.
type manualExecutor struct {
	in  *bufio.Reader
	out io.Writer
}

func newManualExecutor() *manualExecutor {
	return &manualExecutor{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (m *manualExecutor) Implement(ctx context.Context, item models.WorkItem, feedback []qa.Issue, guidance string) (qa.ImplementationResult, error) {
	fmt.Fprintf(m.out, "\n%s %s: %s\n", color.CyanString("▶"), item.ID, item.Title)
	if guidance != "" {
		fmt.Fprintf(m.out, "  guidance: %s\n", guidance)
	}
	if len(feedback) > 0 {
		fmt.Fprintln(m.out, "  outstanding issues:")
		for _, issue := range feedback {
			fmt.Fprintf(m.out, "    - %s: %s\n", issue.Type, issue.Description)
		}
	}
	for i, criterion := range item.AcceptanceCriteria {
		fmt.Fprintf(m.out, "  [%d] %s\n", i+1, criterion)
	}
	fmt.Fprintln(m.out, "Make the change, then list the completed criteria numbers (e.g. 1,3) or 'all':")

	for {
		if err := ctx.Err(); err != nil {
			return qa.ImplementationResult{}, err
		}
		fmt.Fprint(m.out, "done> ")
		line, err := m.in.ReadString('\n')
		if err != nil {
			return qa.ImplementationResult{}, err
		}
		line = strings.TrimSpace(line)
		if line == "all" {
			return qa.ImplementationResult{CompletedCriteria: append([]string(nil), item.AcceptanceCriteria...)}, nil
		}
		result, ok := parseCriteriaSelection(line, item.AcceptanceCriteria)
		if ok {
			return result, nil
		}
		fmt.Fprintln(m.out, "enter comma-separated criteria numbers, 'all', or an empty line for none")
	}
}

func parseCriteriaSelection(line string, criteria []string) (qa.ImplementationResult, bool) {
	if line == "" {
		return qa.ImplementationResult{}, true
	}
	var completed []string
	for _, part := range strings.Split(line, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(criteria) {
			return qa.ImplementationResult{}, false
		}
		completed = append(completed, criteria[n-1])
	}
	return qa.ImplementationResult{CompletedCriteria: completed}, true
}
