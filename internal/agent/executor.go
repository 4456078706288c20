package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/pkg/models"
)

const implementSystemPrompt = `You are an autonomous software engineer working through a backlog item.
Implement the requested change in the working directory, then report which
acceptance criteria you completed.

Respond with a JSON object on the final line of your reply:
{"completedCriteria": ["..."], "evidence": {"criterion": "how it was verified"}, "notes": "..."}
List a criterion in completedCriteria only if you actually satisfied it.`

const researchSystemPrompt = `You are researching a backlog item before implementation.
Survey the relevant code, constraints, and pitfalls. Reply with concise
implementation notes a second engineer could follow. Do not write code.`

const critiqueSystemPrompt = `You are reviewing an implementation report against its backlog item.
If any claimed criterion is not genuinely satisfied, remove it. Respond with
the corrected JSON report on the final line:
{"completedCriteria": ["..."], "evidence": {"criterion": "how it was verified"}, "notes": "..."}`

// Executor implements the runner's Executor, Researcher, and SelfCritic
// interfaces by prompting Claude.
type Executor struct {
	client    *Client
	maxTokens int64
}

// NewExecutor creates an executor over an Anthropic client.
func NewExecutor(client *Client) *Executor {
	return &Executor{client: client, maxTokens: 8192}
}

// implementationReport is the JSON reply contract for implementation
// and critique rounds.
type implementationReport struct {
	CompletedCriteria []string          `json:"completedCriteria"`
	Evidence          map[string]string `json:"evidence"`
	Notes             string            `json:"notes"`
}

// Implement runs one implementation round for the item and reports the
// criteria the model claims to have satisfied.
func (e *Executor) Implement(ctx context.Context, item models.WorkItem, feedback []qa.Issue, guidance string) (qa.ImplementationResult, error) {
	var sb strings.Builder
	writeItemPrompt(&sb, item)

	if guidance != "" {
		sb.WriteString("\nHuman guidance for this attempt:\n")
		sb.WriteString(guidance)
		sb.WriteString("\n")
	}
	if len(feedback) > 0 {
		sb.WriteString("\nIssues from the previous attempt that must be resolved:\n")
		for _, issue := range feedback {
			fmt.Fprintf(&sb, "- [%s] %s: %s", issue.Severity, issue.Type, issue.Description)
			if issue.File != "" {
				fmt.Fprintf(&sb, " (%s)", issue.File)
			}
			if issue.Suggestion != "" {
				fmt.Fprintf(&sb, " hint: %s", issue.Suggestion)
			}
			sb.WriteString("\n")
		}
	}

	text, err := e.complete(ctx, implementSystemPrompt, sb.String())
	if err != nil {
		return qa.ImplementationResult{}, fmt.Errorf("implementation round: %w", err)
	}
	return parseReport(text), nil
}

// Research runs a pre-implementation research pass and returns the
// model's notes as guidance.
func (e *Executor) Research(ctx context.Context, item models.WorkItem) (string, error) {
	var sb strings.Builder
	writeItemPrompt(&sb, item)
	text, err := e.complete(ctx, researchSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("research phase: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Critique asks the model to audit its own implementation report,
// keeping the original when the reply does not parse.
func (e *Executor) Critique(ctx context.Context, item models.WorkItem, result qa.ImplementationResult) (qa.ImplementationResult, error) {
	var sb strings.Builder
	writeItemPrompt(&sb, item)
	sb.WriteString("\nImplementation report under review:\n")
	report, _ := json.Marshal(implementationReport{
		CompletedCriteria: result.CompletedCriteria,
		Evidence:          result.Evidence,
	})
	sb.Write(report)
	sb.WriteString("\n")

	text, err := e.complete(ctx, critiqueSystemPrompt, sb.String())
	if err != nil {
		return result, fmt.Errorf("critique pass: %w", err)
	}
	if parsed, ok := tryParseReport(text); ok {
		return parsed, nil
	}
	return result, nil
}

// complete makes one Messages call and concatenates the text blocks.
func (e *Executor) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := e.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.client.Model(),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", err
	}
	e.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	return sb.String(), nil
}

// writeItemPrompt renders a work item as prompt context.
func writeItemPrompt(sb *strings.Builder, item models.WorkItem) {
	fmt.Fprintf(sb, "Backlog item %s: %s\n", item.ID, item.Title)
	if item.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(item.Description)
		sb.WriteString("\n")
	}
	if len(item.AcceptanceCriteria) > 0 {
		sb.WriteString("\nAcceptance criteria:\n")
		for _, c := range item.AcceptanceCriteria {
			fmt.Fprintf(sb, "- %s\n", c)
		}
	}
	if item.Notes != "" {
		sb.WriteString("\nNotes:\n")
		sb.WriteString(item.Notes)
		sb.WriteString("\n")
	}
}

// parseReport extracts the JSON report from a model reply, tolerating
// surrounding prose. An unparseable reply claims nothing.
func parseReport(text string) qa.ImplementationResult {
	if result, ok := tryParseReport(text); ok {
		return result
	}
	return qa.ImplementationResult{}
}

func tryParseReport(text string) (qa.ImplementationResult, bool) {
	// The report is the last JSON object in the reply.
	start := strings.LastIndex(text, `{"completedCriteria"`)
	if start < 0 {
		start = strings.LastIndex(text, "{")
	}
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return qa.ImplementationResult{}, false
	}

	var report implementationReport
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return qa.ImplementationResult{}, false
	}
	return qa.ImplementationResult{
		CompletedCriteria: report.CompletedCriteria,
		Evidence:          report.Evidence,
	}, true
}
