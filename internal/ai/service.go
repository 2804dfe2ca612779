package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/devpulse/internal/metrics"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

const (
	maxPromptErrors   = 50
	maxMessageBytes   = 500
	maxStackBytes     = 2000
	maxIssueBodyBytes = 4000
)

// Service wraps the configured provider with the prompts the dashboard
// features use. Every call runs under the service timeout regardless of the
// caller's context.
type Service struct {
	provider models.AIProvider
	timeout  time.Duration
}

// NewService creates the completion service.
func NewService(provider models.AIProvider, timeout time.Duration) *Service {
	return &Service{provider: provider, timeout: timeout}
}

// Provider returns the active provider name.
func (s *Service) Provider() string { return s.provider.Name() }

// GenerateBugReport turns a GitHub issue into a structured bug report draft.
func (s *Service) GenerateBugReport(ctx context.Context, issue *models.Issue) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", issue.Repository)
	fmt.Fprintf(&b, "Issue #%d: %s\n", issue.Number, issue.Title)
	fmt.Fprintf(&b, "State: %s\n", issue.State)
	fmt.Fprintf(&b, "Reported by: %s\n\n", issue.AuthorName)
	b.WriteString(truncateString(issue.Body, maxIssueBodyBytes))

	return s.complete(ctx, models.CompletionRequest{
		System: "You are a software engineering assistant. Given a GitHub issue, " +
			"produce a structured bug report with sections: Summary, Steps to Reproduce, " +
			"Expected Behavior, Actual Behavior, and Suggested Priority. Be concise.",
		Prompt:    b.String(),
		MaxTokens: 1024,
	})
}

// SummarizeErrorPatterns reviews a batch of recent errors and describes the
// recurring patterns.
func (s *Service) SummarizeErrorPatterns(ctx context.Context, errs []*models.ErrorLog) (string, error) {
	if len(errs) == 0 {
		return "", ErrNoInput
	}
	if len(errs) > maxPromptErrors {
		errs = errs[:maxPromptErrors]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent errors (%d shown):\n\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(&b, "- [%s/%s] %s (%s)\n",
			e.Severity, e.Source,
			truncateString(e.Message, maxMessageBytes),
			e.Timestamp.Format(time.RFC3339))
	}

	return s.complete(ctx, models.CompletionRequest{
		System: "You are an observability assistant. Analyze the error list and " +
			"summarize the dominant patterns: which errors recur, which are most " +
			"severe, and what likely connects them. Three short paragraphs at most.",
		Prompt:    b.String(),
		MaxTokens: 768,
	})
}

// SuggestResolution proposes debugging steps for a single error.
func (s *Service) SuggestResolution(ctx context.Context, errLog *models.ErrorLog) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Error (%s, %s): %s\n",
		errLog.Severity, errLog.Source,
		truncateString(errLog.Message, maxMessageBytes))
	if errLog.StackTrace != nil {
		fmt.Fprintf(&b, "\nStack trace:\n%s\n", truncateString(*errLog.StackTrace, maxStackBytes))
	}

	return s.complete(ctx, models.CompletionRequest{
		System: "You are a debugging assistant. Given one application error, " +
			"suggest the most likely cause and concrete next steps to resolve it. " +
			"Number the steps.",
		Prompt:    b.String(),
		MaxTokens: 768,
	})
}

// SummarizeEvent writes a one-paragraph summary of a stored webhook event,
// used when the dashboard marks an event processed.
func (s *Service) SummarizeEvent(ctx context.Context, ev *models.GitHubEvent) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s on %s\n", ev.Event, ev.Repository)
	if ev.Action != nil {
		fmt.Fprintf(&b, "Action: %s\n", *ev.Action)
	}
	appendPayloadHighlights(&b, ev)

	return s.complete(ctx, models.CompletionRequest{
		System: "You are a development activity assistant. Summarize this GitHub " +
			"event in one short paragraph a team lead can skim.",
		Prompt:    b.String(),
		MaxTokens: 256,
	})
}

func (s *Service) complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.provider.Complete(callCtx, req)
	if err != nil {
		metrics.AICompletions.WithLabelValues(s.provider.Name(), "error").Inc()
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		metrics.AICompletions.WithLabelValues(s.provider.Name(), "empty").Inc()
		return "", ErrEmptyCompletion
	}

	metrics.AICompletions.WithLabelValues(s.provider.Name(), "ok").Inc()
	return out, nil
}

func appendPayloadHighlights(b *strings.Builder, ev *models.GitHubEvent) {
	switch ev.Event {
	case "push":
		if commits, ok := ev.Payload["commits"].([]any); ok {
			fmt.Fprintf(b, "Commits: %d\n", len(commits))
			for _, c := range commits {
				if commit, ok := c.(map[string]any); ok {
					if msg, ok := commit["message"].(string); ok {
						fmt.Fprintf(b, "- %s\n", truncateString(msg, 200))
					}
				}
			}
		}
	case "issues", "pull_request":
		for _, key := range []string{"issue", "pull_request"} {
			if obj, ok := ev.Payload[key].(map[string]any); ok {
				if title, ok := obj["title"].(string); ok {
					fmt.Fprintf(b, "Title: %s\n", truncateString(title, 300))
				}
				if body, ok := obj["body"].(string); ok && body != "" {
					fmt.Fprintf(b, "Body: %s\n", truncateString(body, 1000))
				}
			}
		}
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
