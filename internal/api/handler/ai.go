package handler

import (
	"net/http"
	"time"

	"github.com/kiranshivaraju/devpulse/internal/ai"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/pkg/logquery"
)

// AI implements the ai.* procedures. Every operation loads its subject
// through the caller's scope before touching the provider, so a completion
// can never leak another tenant's data into a prompt.
type AI struct {
	logs logstore.LogStore
	gate *tenancy.Gate
	ai   *ai.Service
}

// NewAI creates the ai handler group.
func NewAI(l logstore.LogStore, g *tenancy.Gate, svc *ai.Service) *AI {
	return &AI{logs: l, gate: g, ai: svc}
}

// GenerateBugReport handles ai.generateBugReport: drafts a bug report from a
// stored `issues` webhook event.
func (h *AI) GenerateBugReport(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		EventID string `json:"event_id" validate:"required"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ev, err := h.logs.GetGitHubEvent(r.Context(), req.EventID, p.Team.ID.String())
	if err != nil {
		writeError(w, err)
		return
	}

	issue := logstore.IssueFromEvent(ev)
	if issue == nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			"Event carries no issue payload", nil)
		return
	}

	report, err := h.ai.GenerateBugReport(r.Context(), issue)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, completionBody(h.ai.Provider(), report))
}

// SummarizeErrors handles ai.summarizeErrors: summarizes the team's recent
// error patterns, optionally narrowed to one app.
func (h *AI) SummarizeErrors(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID string `json:"app_id" validate:"omitempty,uuid"`
		Days  int    `json:"days" validate:"omitempty,min=1,max=90"`
		Limit int64  `json:"limit" validate:"omitempty,min=1,max=50"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	appID, err := parseOptionalUUID(req.AppID)
	if err != nil {
		writeError(w, errBadJSON)
		return
	}
	scope, err := h.gate.Bind(r.Context(), p.Team.ID, appID)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	errs, _, err := h.logs.ListErrorLogs(r.Context(), logquery.ErrorParams{
		AppIDs: scope.AppIDs,
		Start:  sinceDays(req.Days, 7),
	}, logstore.Page{Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.ai.SummarizeErrorPatterns(r.Context(), errs)
	if err != nil {
		writeError(w, err)
		return
	}

	body := completionBody(h.ai.Provider(), summary)
	body["errors_analyzed"] = len(errs)
	response.JSON(w, body)
}

// SuggestResolution handles ai.suggestResolution for a single error log.
func (h *AI) SuggestResolution(w http.ResponseWriter, r *http.Request) {
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

	scope, err := h.gate.Bind(r.Context(), p.Team.ID, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	errLog, err := h.logs.GetErrorLog(r.Context(), req.ID, scope.AppIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	suggestion, err := h.ai.SuggestResolution(r.Context(), errLog)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, completionBody(h.ai.Provider(), suggestion))
}

func completionBody(provider, content string) map[string]any {
	return map[string]any{
		"provider":     provider,
		"content":      content,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
}
