package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/auth"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// Apps implements the apps.* procedures.
type Apps struct {
	store store.Store
}

// NewApps creates the apps handler group.
func NewApps(s store.Store) *Apps {
	return &Apps{store: s}
}

// List handles apps.list.
func (h *Apps) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	apps, err := h.store.ListApps(r.Context(), p.Team.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if apps == nil {
		apps = []*models.App{}
	}
	response.JSON(w, apps)
}

// Get handles apps.get.
func (h *Apps) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" validate:"required,uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	app, err := h.store.GetApp(r.Context(), uuid.MustParse(req.ID), p.Team.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, app)
}

// Create handles apps.create.
func (h *Apps) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string  `json:"name" validate:"required,min=1,max=100"`
		Description *string `json:"description"`
		GitHubRepo  *string `json:"github_repo"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	apiKey, err := auth.NewAppKey()
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	app := &models.App{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Status:      models.AppStatusActive,
		APIKey:      apiKey,
		GitHubRepo:  req.GitHubRepo,
		TeamID:      p.Team.ID,
		CreatedByID: p.User.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateApp(r.Context(), app); err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, app)
}

// Update handles apps.update.
func (h *Apps) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID          string  `json:"id" validate:"required,uuid"`
		Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
		Description *string `json:"description"`
		GitHubRepo  *string `json:"github_repo"`
		Status      *string `json:"status" validate:"omitempty,oneof=active inactive error"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	app, err := h.store.UpdateApp(r.Context(), uuid.MustParse(req.ID), p.Team.ID, store.AppUpdate{
		Name:        req.Name,
		Description: req.Description,
		GitHubRepo:  req.GitHubRepo,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, app)
}

// Delete handles apps.delete.
func (h *Apps) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" validate:"required,uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.DeleteApp(r.Context(), uuid.MustParse(req.ID), p.Team.ID); err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, map[string]bool{"deleted": true})
}

// RotateKey handles apps.rotateKey. The old key stops resolving immediately.
func (h *Apps) RotateKey(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" validate:"required,uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	newKey, err := auth.NewAppKey()
	if err != nil {
		writeError(w, err)
		return
	}

	app, err := h.store.RotateAppKey(r.Context(), uuid.MustParse(req.ID), p.Team.ID, newKey)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, app)
}

// CreateToken handles apps.createToken. The raw token appears in this
// response only; afterwards only its hash exists.
func (h *Apps) CreateToken(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID         string `json:"app_id" validate:"required,uuid"`
		Name          string `json:"name" validate:"required,min=1,max=100"`
		ExpiresInDays int    `json:"expires_in_days" validate:"omitempty,min=1,max=365"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	appID := uuid.MustParse(req.AppID)
	// Verify the app belongs to the caller's team before attaching a token.
	if _, err := h.store.GetApp(r.Context(), appID, p.Team.ID); err != nil {
		writeError(w, err)
		return
	}

	raw, prefix, hash, err := auth.NewPersonalToken()
	if err != nil {
		writeError(w, err)
		return
	}

	tok := &models.APIToken{
		ID:          uuid.New(),
		AppID:       appID,
		CreatedByID: p.User.ID,
		Name:        req.Name,
		TokenPrefix: prefix,
		TokenHash:   hash,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if req.ExpiresInDays > 0 {
		exp := tok.CreatedAt.AddDate(0, 0, req.ExpiresInDays)
		tok.ExpiresAt = &exp
	}

	if err := h.store.CreateAPIToken(r.Context(), tok); err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, map[string]any{
		"token":     raw,
		"api_token": tok,
	})
}

// ListTokens handles apps.listTokens.
func (h *Apps) ListTokens(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID string `json:"app_id" validate:"required,uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.store.ListAPITokens(r.Context(), uuid.MustParse(req.AppID), p.Team.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tokens == nil {
		tokens = []*models.APIToken{}
	}
	response.JSON(w, tokens)
}

// RevokeToken handles apps.revokeToken.
func (h *Apps) RevokeToken(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" validate:"required,uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.RevokeAPIToken(r.Context(), uuid.MustParse(req.ID), p.Team.ID); err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, map[string]bool{"revoked": true})
}

// Metrics handles apps.metrics: the daily SDK traffic rollups for one app.
func (h *Apps) Metrics(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req struct {
		AppID string `json:"app_id" validate:"required,uuid"`
		Days  int    `json:"days" validate:"omitempty,min=1,max=90"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	appID := uuid.MustParse(req.AppID)
	if _, err := h.store.GetApp(r.Context(), appID, p.Team.ID); err != nil {
		writeError(w, err)
		return
	}

	days := req.Days
	if days == 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	metrics, err := h.store.ListAppMetrics(r.Context(), appID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	if metrics == nil {
		metrics = []*models.AppMetric{}
	}
	response.JSON(w, metrics)
}
