package handler

import (
	"net/http"
	"time"

	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/metrics"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/pkg/logquery"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// Logs implements the logs.* procedures: SDK ingestion and the dashboard
// read/aggregation surface over the document store.
type Logs struct {
	logs logstore.LogStore
	gate *tenancy.Gate
}

// NewLogs creates the logs handler group.
func NewLogs(l logstore.LogStore, g *tenancy.Gate) *Logs {
	return &Logs{logs: l, gate: g}
}

// LogError handles logs.logError. SDK ingestion: the app id is stamped from
// the authenticated app, never read from the body.
func (h *Logs) LogError(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.GetPrincipal(r)
	if !ok || p.App == nil {
		response.Error(w, http.StatusForbidden,
			response.CodeForbidden, "App credential required", nil)
		return
	}

	var req struct {
		Message    string         `json:"message" validate:"required,max=10000"`
		StackTrace *string        `json:"stack_trace"`
		Source     string         `json:"source" validate:"required,oneof=frontend backend"`
		Severity   string         `json:"severity" validate:"required,oneof=info warning error critical"`
		Metadata   map[string]any `json:"metadata"`
		Tags       []string       `json:"tags" validate:"max=20"`
		Timestamp  *time.Time     `json:"timestamp"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	log := &models.ErrorLog{
		AppID:      p.App.ID.String(),
		Message:    req.Message,
		StackTrace: req.StackTrace,
		Source:     models.Source(req.Source),
		Severity:   models.Severity(req.Severity),
		Metadata:   req.Metadata,
		Timestamp:  timestampOrNow(req.Timestamp),
		Tags:       req.Tags,
	}

	id, err := h.logs.InsertErrorLog(r.Context(), log)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.IngestedLogs.WithLabelValues("error").Inc()
	response.Created(w, map[string]string{"id": id})
}

// LogPerformance handles logs.logPerformance.
func (h *Logs) LogPerformance(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.GetPrincipal(r)
	if !ok || p.App == nil {
		response.Error(w, http.StatusForbidden,
			response.CodeForbidden, "App credential required", nil)
		return
	}

	var req struct {
		Endpoint     string         `json:"endpoint" validate:"required,max=500"`
		Method       string         `json:"method" validate:"required,max=10"`
		ResponseTime float64        `json:"response_time" validate:"min=0"`
		StatusCode   int            `json:"status_code" validate:"required,min=100,max=599"`
		Metadata     map[string]any `json:"metadata"`
		Timestamp    *time.Time     `json:"timestamp"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	log := &models.PerformanceLog{
		AppID:        p.App.ID.String(),
		Endpoint:     req.Endpoint,
		Method:       req.Method,
		ResponseTime: req.ResponseTime,
		StatusCode:   req.StatusCode,
		Timestamp:    timestampOrNow(req.Timestamp),
		Metadata:     req.Metadata,
	}

	id, err := h.logs.InsertPerformanceLog(r.Context(), log)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.IngestedLogs.WithLabelValues("performance").Inc()
	response.Created(w, map[string]string{"id": id})
}

// GetErrors handles logs.getErrors.
func (h *Logs) GetErrors(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID    string     `json:"app_id" validate:"omitempty,uuid"`
		Severity string     `json:"severity" validate:"omitempty,oneof=info warning error critical"`
		Source   string     `json:"source" validate:"omitempty,oneof=frontend backend"`
		Resolved *bool      `json:"resolved"`
		Search   string     `json:"search" validate:"max=200"`
		Start    *time.Time `json:"start"`
		End      *time.Time `json:"end"`
		Limit    int64      `json:"limit"`
		Offset   int64      `json:"offset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope, err := h.scope(r, p, req.AppID)
	if err != nil {
		writeError(w, err)
		return
	}

	page := pageFromRequest(req.Limit, req.Offset)
	logs, total, err := h.logs.ListErrorLogs(r.Context(), logquery.ErrorParams{
		AppIDs:   scope.AppIDs,
		Severity: req.Severity,
		Source:   req.Source,
		Resolved: req.Resolved,
		Search:   req.Search,
		Start:    timeOrZero(req.Start),
		End:      timeOrZero(req.End),
	}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []*models.ErrorLog{}
	}
	response.Collection(w, logs, paginationMeta(page, total))
}

// GetError handles logs.getError.
func (h *Logs) GetError(w http.ResponseWriter, r *http.Request) {
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

	scope, err := h.scope(r, p, "")
	if err != nil {
		writeError(w, err)
		return
	}

	log, err := h.logs.GetErrorLog(r.Context(), req.ID, scope.AppIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, log)
}

// ResolveError handles logs.resolveError.
func (h *Logs) ResolveError(w http.ResponseWriter, r *http.Request) {
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

	scope, err := h.scope(r, p, "")
	if err != nil {
		writeError(w, err)
		return
	}

	log, err := h.logs.ResolveErrorLog(r.Context(), req.ID, scope.AppIDs, p.User.ID.String())
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, log)
}

// GetErrorStats handles logs.getErrorStats.
func (h *Logs) GetErrorStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID string `json:"app_id" validate:"omitempty,uuid"`
		Days  int    `json:"days" validate:"omitempty,min=1,max=90"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope, err := h.scope(r, p, req.AppID)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.logs.ErrorStats(r.Context(), scope.AppIDs, sinceDays(req.Days, 7))
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, stats)
}

// GetPerformance handles logs.getPerformance.
func (h *Logs) GetPerformance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID    string     `json:"app_id" validate:"omitempty,uuid"`
		Endpoint string     `json:"endpoint" validate:"max=500"`
		Start    *time.Time `json:"start"`
		End      *time.Time `json:"end"`
		Limit    int64      `json:"limit"`
		Offset   int64      `json:"offset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope, err := h.scope(r, p, req.AppID)
	if err != nil {
		writeError(w, err)
		return
	}

	page := pageFromRequest(req.Limit, req.Offset)
	logs, total, err := h.logs.ListPerformanceLogs(r.Context(), logquery.PerformanceParams{
		AppIDs:   scope.AppIDs,
		Endpoint: req.Endpoint,
		Start:    timeOrZero(req.Start),
		End:      timeOrZero(req.End),
	}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []*models.PerformanceLog{}
	}
	response.Collection(w, logs, paginationMeta(page, total))
}

// GetPerformanceStats handles logs.getPerformanceStats.
func (h *Logs) GetPerformanceStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID string `json:"app_id" validate:"omitempty,uuid"`
		Days  int    `json:"days" validate:"omitempty,min=1,max=90"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope, err := h.scope(r, p, req.AppID)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.logs.PerformanceStats(r.Context(), scope.AppIDs, sinceDays(req.Days, 7))
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, stats)
}

// scope binds the caller's query scope, optionally narrowed to one app. A
// narrowing app outside the team surfaces as not-found via the gate.
func (h *Logs) scope(r *http.Request, p *models.Principal, appID string) (*tenancy.Scope, error) {
	id, err := parseOptionalUUID(appID)
	if err != nil {
		return nil, errBadJSON
	}
	return h.gate.Bind(r.Context(), p.Team.ID, id)
}

func timestampOrNow(t *time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return t.UTC()
	}
	return time.Now().UTC()
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func sinceDays(days, fallback int) time.Time {
	if days <= 0 {
		days = fallback
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}
