package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/devpulse/internal/ai"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/logquery"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// GitHub implements the github.* procedures: integration management and the
// read surface over stored webhook events.
type GitHub struct {
	store store.Store
	logs  logstore.LogStore
	ai    *ai.Service
}

// NewGitHub creates the github handler group.
func NewGitHub(s store.Store, l logstore.LogStore, svc *ai.Service) *GitHub {
	return &GitHub{store: s, logs: l, ai: svc}
}

// GetIntegration handles github.getIntegration.
func (h *GitHub) GetIntegration(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	integ, err := h.store.GetIntegration(r.Context(), p.Team.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, integ)
}

// Connect handles github.connect. Connecting again replaces the team's repo
// list and reactivates a previously disconnected integration.
func (h *GitHub) Connect(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		InstallationID string   `json:"installation_id" validate:"required,max=100"`
		Repos          []string `json:"repos" validate:"required,min=1,max=100,dive,min=3,max=200"`
		WebhookSecret  string   `json:"webhook_secret" validate:"omitempty,min=8,max=200"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	integ, err := h.store.UpsertIntegration(r.Context(), &models.GitHubIntegration{
		ID:             uuid.New(),
		TeamID:         p.Team.ID,
		InstallationID: req.InstallationID,
		Repos:          req.Repos,
		WebhookSecret:  req.WebhookSecret,
		IsActive:       true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, integ)
}

// Disconnect handles github.disconnect. The integration row survives with
// is_active false so a later connect keeps its creation order.
func (h *GitHub) Disconnect(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	integ, err := h.store.DisableIntegration(r.Context(), p.Team.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, integ)
}

// GetEvents handles github.getEvents.
func (h *GitHub) GetEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		Event      string     `json:"event" validate:"max=50"`
		Repository string     `json:"repository" validate:"max=200"`
		Processed  *bool      `json:"processed"`
		Start      *time.Time `json:"start"`
		End        *time.Time `json:"end"`
		Limit      int64      `json:"limit"`
		Offset     int64      `json:"offset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	page := pageFromRequest(req.Limit, req.Offset)
	events, total, err := h.logs.ListGitHubEvents(r.Context(), logquery.EventParams{
		TeamID:     p.Team.ID.String(),
		Event:      req.Event,
		Repository: req.Repository,
		Processed:  req.Processed,
		Start:      timeOrZero(req.Start),
		End:        timeOrZero(req.End),
	}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*models.GitHubEvent{}
	}
	response.Collection(w, events, paginationMeta(page, total))
}

// GetEvent handles github.getEvent.
func (h *GitHub) GetEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" validate:"required"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ev, err := h.logs.GetGitHubEvent(r.Context(), req.ID, p.Team.ID.String())
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, ev)
}

// GetEventStats handles github.getEventStats.
func (h *GitHub) GetEventStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		Days int `json:"days" validate:"omitempty,min=1,max=90"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.logs.EventStats(r.Context(), p.Team.ID.String(), sinceDays(req.Days, 30))
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, stats)
}

// ProcessEvent handles github.processEvent: marks the event processed,
// optionally attaching an AI summary first. Summarization failure does not
// block processing; the event is marked without a summary and the failure is
// logged.
func (h *GitHub) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID        string `json:"id" validate:"required"`
		Summarize bool   `json:"summarize"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	teamID := p.Team.ID.String()
	ev, err := h.logs.GetGitHubEvent(r.Context(), req.ID, teamID)
	if err != nil {
		writeError(w, err)
		return
	}

	var summary *string
	if req.Summarize {
		s, err := h.ai.SummarizeEvent(r.Context(), ev)
		if err != nil {
			slog.Error("event summarization failed",
				"event_id", req.ID, "error", err)
		} else {
			summary = &s
		}
	}

	ev, err = h.logs.MarkEventProcessed(r.Context(), req.ID, teamID, summary)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, ev)
}

// GetIssues handles github.getIssues.
func (h *GitHub) GetIssues(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		State  string `json:"state" validate:"omitempty,oneof=open closed"`
		Limit  int64  `json:"limit"`
		Offset int64  `json:"offset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	issues, err := h.logs.ListIssues(r.Context(), p.Team.ID.String(), req.State,
		pageFromRequest(req.Limit, req.Offset))
	if err != nil {
		writeError(w, err)
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	response.JSON(w, issues)
}
