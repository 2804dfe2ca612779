package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/metrics"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

var (
	// ErrMalformedPayload is reported when the delivery body is not a JSON
	// object or names no repository.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrRepoNotConfigured is reported when no active integration claims the
	// event's repository. The delivery is acknowledged but nothing is stored.
	ErrRepoNotConfigured = errors.New("repository not configured")
)

// Dispatcher routes verified deliveries to the owning team and stores them.
type Dispatcher struct {
	store store.Store
	logs  logstore.LogStore
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(s store.Store, l logstore.LogStore) *Dispatcher {
	return &Dispatcher{store: s, logs: l}
}

// Result describes a stored delivery.
type Result struct {
	EventID    string
	TeamID     string
	Repository string
}

// Dispatch parses the delivery, finds the first active integration claiming
// its repository, and stores the event for that team. Integrations are
// scanned in creation order, so when two teams claim one repository the
// earlier integration wins.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, body []byte) (*Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues(event, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	repo := repositoryFullName(payload)
	if repo == "" {
		metrics.WebhookEvents.WithLabelValues(event, "rejected").Inc()
		return nil, fmt.Errorf("%w: no repository", ErrMalformedPayload)
	}

	integrations, err := d.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}

	for _, integ := range integrations {
		if !integ.HasRepo(repo) {
			continue
		}

		ev := &models.GitHubEvent{
			TeamID:     integ.TeamID.String(),
			Event:      event,
			Repository: repo,
			Payload:    payload,
			Timestamp:  time.Now().UTC(),
			Processed:  false,
		}
		if action, ok := payload["action"].(string); ok {
			ev.Action = &action
		}

		id, err := d.logs.InsertGitHubEvent(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("store event: %w", err)
		}

		metrics.WebhookEvents.WithLabelValues(event, "stored").Inc()
		slog.Info("webhook event stored",
			"event", event,
			"repository", repo,
			"team_id", ev.TeamID,
			"event_id", id,
		)
		react(event, repo, payload)
		return &Result{EventID: id, TeamID: ev.TeamID, Repository: repo}, nil
	}

	metrics.WebhookEvents.WithLabelValues(event, "unmatched").Inc()
	return nil, ErrRepoNotConfigured
}

// react runs the best-effort hooks after a delivery is stored. A hook failure
// must never affect the webhook response, so the whole step is recovered.
func react(event, repo string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("webhook reaction panic", "event", event, "repository", repo, "panic", r)
		}
	}()

	action, _ := payload["action"].(string)
	switch event {
	case "issues":
		if action == "opened" || action == "reopened" {
			title := ""
			if issue, ok := payload["issue"].(map[string]any); ok {
				title, _ = issue["title"].(string)
			}
			slog.Info("issue reported", "repository", repo, "action", action, "title", title)
		}
	case "push":
		if commits, ok := payload["commits"].([]any); ok && len(commits) > 0 {
			slog.Info("push received", "repository", repo, "commits", len(commits))
		}
	case "pull_request":
		if action == "opened" {
			slog.Info("pull request opened", "repository", repo)
		}
	default:
		slog.Info("unhandled webhook event type", "event", event, "repository", repo)
	}
}

func repositoryFullName(payload map[string]any) string {
	repo, ok := payload["repository"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := repo["full_name"].(string)
	return name
}
