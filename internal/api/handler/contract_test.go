package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kiranshivaraju/devpulse/internal/ai"
	"github.com/kiranshivaraju/devpulse/internal/ai/mock"
	"github.com/kiranshivaraju/devpulse/internal/api"
	"github.com/kiranshivaraju/devpulse/internal/api/handler"
	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/auth"
	"github.com/kiranshivaraju/devpulse/internal/cache"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/internal/webhook"
	"github.com/kiranshivaraju/devpulse/pkg/logquery"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testUserID  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testTeamID  = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testAppID   = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	otherTeamID = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
	otherAppID  = uuid.MustParse("eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee")

	testEmail     = "dev@acme.test"
	testAppKey    = "dp_live_abcdefghijklmnopqrstuvwxyz012345"
	webhookSecret = "whsec_contract_test"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu           sync.Mutex
	users        map[string]*models.User
	teams        map[uuid.UUID]*models.Team
	memberships  map[uuid.UUID]uuid.UUID // user -> team
	apps         []*models.App
	tokens       []*models.APIToken
	integrations []*models.GitHubIntegration
	metrics      []*models.AppMetric
}

func newMockStore() *mockStore {
	user := &models.User{ID: testUserID, Email: testEmail, Name: "Dev"}
	team := &models.Team{ID: testTeamID, Name: "Acme", Slug: "acme", OwnerID: testUserID}
	otherTeam := &models.Team{ID: otherTeamID, Name: "Rival", Slug: "rival", OwnerID: uuid.New()}

	return &mockStore{
		users: map[string]*models.User{testEmail: user},
		teams: map[uuid.UUID]*models.Team{
			testTeamID:  team,
			otherTeamID: otherTeam,
		},
		memberships: map[uuid.UUID]uuid.UUID{testUserID: testTeamID},
		apps: []*models.App{
			{
				ID:          testAppID,
				Name:        "checkout",
				Status:      models.AppStatusActive,
				APIKey:      testAppKey,
				TeamID:      testTeamID,
				CreatedByID: testUserID,
			},
			{
				ID:          otherAppID,
				Name:        "rival-app",
				Status:      models.AppStatusActive,
				APIKey:      "dp_live_zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
				TeamID:      otherTeamID,
				CreatedByID: uuid.New(),
			},
		},
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return store.ErrDuplicateKey
	}
	s.users[u.Email] = u
	return nil
}

func (s *mockStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) CreateTeam(_ context.Context, t *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = t
	return nil
}

func (s *mockStore) GetTeam(_ context.Context, id uuid.UUID) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.teams[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) AddTeamMember(_ context.Context, m *models.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.UserID] = m.TeamID
	return nil
}

func (s *mockStore) FirstTeamForUser(_ context.Context, userID uuid.UUID) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teamID, ok := s.memberships[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.teams[teamID], nil
}

func (s *mockStore) CreateApp(_ context.Context, a *models.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = append(s.apps, a)
	return nil
}

func (s *mockStore) GetApp(_ context.Context, id, teamID uuid.UUID) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ID == id && a.TeamID == teamID {
			return a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) ListApps(_ context.Context, teamID uuid.UUID) ([]*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.App
	for _, a := range s.apps {
		if a.TeamID == teamID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *mockStore) ListAppIDs(_ context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, a := range s.apps {
		if a.TeamID == teamID {
			out = append(out, a.ID)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateApp(_ context.Context, id, teamID uuid.UUID, upd store.AppUpdate) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ID != id || a.TeamID != teamID {
			continue
		}
		if upd.Name != nil {
			a.Name = *upd.Name
		}
		if upd.Description != nil {
			a.Description = upd.Description
		}
		if upd.GitHubRepo != nil {
			a.GitHubRepo = upd.GitHubRepo
		}
		if upd.Status != nil {
			a.Status = *upd.Status
		}
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) DeleteApp(_ context.Context, id, teamID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.apps {
		if a.ID == id && a.TeamID == teamID {
			s.apps = append(s.apps[:i], s.apps[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) RotateAppKey(_ context.Context, id, teamID uuid.UUID, newKey string) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ID == id && a.TeamID == teamID {
			a.APIKey = newKey
			return a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) GetCredentialByAppKey(_ context.Context, apiKey string) (*store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.APIKey == apiKey {
			return &store.Credential{
				App:  a,
				User: s.users[testEmail],
				Team: s.teams[a.TeamID],
			}, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) GetAPITokensByPrefix(_ context.Context, prefix string) ([]*models.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIToken
	for _, t := range s.tokens {
		if t.TokenPrefix == prefix && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *mockStore) GetCredentialForToken(_ context.Context, tokenID uuid.UUID) (*store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.ID != tokenID {
			continue
		}
		for _, a := range s.apps {
			if a.ID == t.AppID {
				return &store.Credential{App: a, User: s.users[testEmail], Team: s.teams[a.TeamID]}, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) CreateAPIToken(_ context.Context, t *models.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, t)
	return nil
}

func (s *mockStore) ListAPITokens(_ context.Context, appID, teamID uuid.UUID) ([]*models.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIToken
	for _, t := range s.tokens {
		if t.AppID == appID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *mockStore) RevokeAPIToken(_ context.Context, id, teamID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.ID == id {
			t.IsActive = false
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) GetIntegration(_ context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.integrations {
		if g.TeamID == teamID {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) UpsertIntegration(_ context.Context, g *models.GitHubIntegration) (*models.GitHubIntegration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.integrations {
		if existing.TeamID == g.TeamID {
			g.ID = existing.ID
			s.integrations[i] = g
			return g, nil
		}
	}
	s.integrations = append(s.integrations, g)
	return g, nil
}

func (s *mockStore) DisableIntegration(_ context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.integrations {
		if g.TeamID == teamID {
			g.IsActive = false
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) ListActiveIntegrations(_ context.Context) ([]*models.GitHubIntegration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.GitHubIntegration
	for _, g := range s.integrations {
		if g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *mockStore) UpsertAppMetricDelta(_ context.Context, appID uuid.UUID, day time.Time, requests, errs int, responseTimeMs float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, &models.AppMetric{
		AppID:             appID,
		Date:              day,
		RequestsTotal:     requests,
		ErrorsTotal:       errs,
		AvgResponseTimeMs: int(responseTimeMs),
	})
	return nil
}

func (s *mockStore) ListAppMetrics(_ context.Context, appID uuid.UUID, since time.Time) ([]*models.AppMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AppMetric
	for _, m := range s.metrics {
		if m.AppID == appID {
			out = append(out, m)
		}
	}
	return out, nil
}

var _ store.Store = (*mockStore)(nil)

// ─── mock log store ──────────────────────────────────────────────────────────

type mockLogStore struct {
	mu        sync.Mutex
	errorLogs []*models.ErrorLog
	perfLogs  []*models.PerformanceLog
	requests  []*models.APIRequest
	events    []*models.GitHubEvent
}

func (l *mockLogStore) Ping(_ context.Context) error { return nil }

func (l *mockLogStore) InsertErrorLog(_ context.Context, log *models.ErrorLog) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.ID = bson.NewObjectID()
	l.errorLogs = append(l.errorLogs, log)
	return log.ID.Hex(), nil
}

func (l *mockLogStore) ListErrorLogs(_ context.Context, p logquery.ErrorParams, page logstore.Page) ([]*models.ErrorLog, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.ErrorLog
	for _, log := range l.errorLogs {
		if !containsStr(p.AppIDs, log.AppID) {
			continue
		}
		if p.Severity != "" && string(log.Severity) != p.Severity {
			continue
		}
		if p.Resolved != nil && log.Resolved != *p.Resolved {
			continue
		}
		out = append(out, log)
	}
	return out, int64(len(out)), nil
}

func (l *mockLogStore) GetErrorLog(_ context.Context, id string, appIDs []string) (*models.ErrorLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, log := range l.errorLogs {
		if log.ID.Hex() == id && containsStr(appIDs, log.AppID) {
			return log, nil
		}
	}
	return nil, logstore.ErrNotFound
}

func (l *mockLogStore) ResolveErrorLog(_ context.Context, id string, appIDs []string, resolvedBy string) (*models.ErrorLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, log := range l.errorLogs {
		if log.ID.Hex() == id && containsStr(appIDs, log.AppID) {
			now := time.Now().UTC()
			log.Resolved = true
			log.ResolvedAt = &now
			log.ResolvedBy = &resolvedBy
			return log, nil
		}
	}
	return nil, logstore.ErrNotFound
}

func (l *mockLogStore) ErrorStats(_ context.Context, appIDs []string, _ time.Time) (*models.ErrorStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := &models.ErrorStats{
		BySeverity: map[string]int64{},
		BySource:   map[string]int64{},
	}
	for _, log := range l.errorLogs {
		if !containsStr(appIDs, log.AppID) {
			continue
		}
		stats.TotalErrors++
		stats.BySeverity[string(log.Severity)]++
		stats.BySource[string(log.Source)]++
	}
	return stats, nil
}

func (l *mockLogStore) InsertPerformanceLog(_ context.Context, log *models.PerformanceLog) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.ID = bson.NewObjectID()
	l.perfLogs = append(l.perfLogs, log)
	return log.ID.Hex(), nil
}

func (l *mockLogStore) ListPerformanceLogs(_ context.Context, p logquery.PerformanceParams, page logstore.Page) ([]*models.PerformanceLog, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.PerformanceLog
	for _, log := range l.perfLogs {
		if containsStr(p.AppIDs, log.AppID) {
			out = append(out, log)
		}
	}
	return out, int64(len(out)), nil
}

func (l *mockLogStore) PerformanceStats(_ context.Context, appIDs []string, _ time.Time) (*models.PerformanceStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := &models.PerformanceStats{}
	for _, log := range l.perfLogs {
		if containsStr(appIDs, log.AppID) {
			stats.TotalSamples++
		}
	}
	return stats, nil
}

func (l *mockLogStore) InsertAPIRequest(_ context.Context, req *models.APIRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	return nil
}

func (l *mockLogStore) InsertGitHubEvent(_ context.Context, ev *models.GitHubEvent) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev.ID = bson.NewObjectID()
	l.events = append(l.events, ev)
	return ev.ID.Hex(), nil
}

func (l *mockLogStore) ListGitHubEvents(_ context.Context, p logquery.EventParams, page logstore.Page) ([]*models.GitHubEvent, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.GitHubEvent
	for _, ev := range l.events {
		if ev.TeamID != p.TeamID {
			continue
		}
		if p.Event != "" && ev.Event != p.Event {
			continue
		}
		out = append(out, ev)
	}
	return out, int64(len(out)), nil
}

func (l *mockLogStore) GetGitHubEvent(_ context.Context, id, teamID string) (*models.GitHubEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.ID.Hex() == id && ev.TeamID == teamID {
			return ev, nil
		}
	}
	return nil, logstore.ErrNotFound
}

func (l *mockLogStore) MarkEventProcessed(_ context.Context, id, teamID string, aiSummary *string) (*models.GitHubEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.ID.Hex() == id && ev.TeamID == teamID {
			now := time.Now().UTC()
			ev.Processed = true
			ev.ProcessedAt = &now
			if aiSummary != nil {
				ev.AISummary = aiSummary
			}
			return ev, nil
		}
	}
	return nil, logstore.ErrNotFound
}

func (l *mockLogStore) EventStats(_ context.Context, teamID string, _ time.Time) (*models.EventStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := &models.EventStats{
		ByEvent: map[string]int64{},
		ByRepo:  map[string]int64{},
	}
	for _, ev := range l.events {
		if ev.TeamID != teamID {
			continue
		}
		stats.TotalEvents++
		stats.ByEvent[ev.Event]++
		stats.ByRepo[ev.Repository]++
	}
	return stats, nil
}

func (l *mockLogStore) ListIssues(_ context.Context, teamID, state string, page logstore.Page) ([]*models.Issue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Issue
	for _, ev := range l.events {
		if ev.TeamID != teamID || ev.Event != "issues" {
			continue
		}
		issue := logstore.IssueFromEvent(ev)
		if issue == nil {
			continue
		}
		if state != "" && issue.State != state {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

var _ logstore.LogStore = (*mockLogStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{counters: make(map[string]int64)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server *httptest.Server
	store  *mockStore
	logs   *mockLogStore
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithAI(t, mock.NewMockProvider())
}

func newTestServerWithAI(t *testing.T, provider models.AIProvider) *testServer {
	t.Helper()

	ms := newMockStore()
	ml := &mockLogStore{}
	mc := newMockCache()

	binder := tenancy.NewBinder(ms)
	gate := tenancy.NewGate(ms)
	aiService := ai.NewService(provider, time.Second)

	deps := api.Dependencies{
		Auth:       mw.NewAuth(auth.NewCredentialResolver(ms), auth.NewHeaderSessionResolver(ms, ""), binder),
		RateLimit:  mw.NewRateLimit(mc, 1000),
		RequestLog: mw.NewRequestLog(ml, ms),

		Apps:    handler.NewApps(ms),
		Logs:    handler.NewLogs(ml, gate),
		GitHub:  handler.NewGitHub(ms, ml, aiService),
		AI:      handler.NewAI(ml, gate, aiService),
		Webhook: handler.NewWebhook(webhookSecret, webhook.NewDispatcher(ms, ml)),
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &testServer{server: srv, store: ms, logs: ml}
}

// sdkRequest authenticates with the app's API key, as the SDK does.
func (ts *testServer) sdkRequest(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	req := ts.newRequest(t, path, body)
	req.Header.Set("X-API-Key", testAppKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// dashRequest authenticates as a browser session forwarded by the auth proxy.
func (ts *testServer) dashRequest(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	req := ts.newRequest(t, path, body)
	req.Header.Set("X-Authenticated-Email", testEmail)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) newRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (ts *testServer) seedErrorLog(t *testing.T, appID uuid.UUID, severity models.Severity) string {
	t.Helper()
	id, err := ts.logs.InsertErrorLog(context.Background(), &models.ErrorLog{
		AppID:     appID.String(),
		Message:   "TypeError: cannot read properties of undefined",
		Source:    models.SourceFrontend,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func (ts *testServer) seedIssueEvent(t *testing.T, teamID uuid.UUID, state string) string {
	t.Helper()
	id, err := ts.logs.InsertGitHubEvent(context.Background(), &models.GitHubEvent{
		TeamID:     teamID.String(),
		Event:      "issues",
		Repository: "acme/checkout",
		Payload: map[string]any{
			"action": "opened",
			"issue": map[string]any{
				"number":   42,
				"title":    "Checkout crashes on empty cart",
				"body":     "Steps to reproduce: open cart, remove all items",
				"state":    state,
				"html_url": "https://github.com/acme/checkout/issues/42",
				"user":     map[string]any{"login": "grumpy-dev"},
			},
		},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

// ─── SDK ingestion ───────────────────────────────────────────────────────────

func TestLogError_201_StampsAppID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logError", map[string]any{
		"message":  "boom",
		"source":   "backend",
		"severity": "error",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	require.Len(t, ts.logs.errorLogs, 1)
	stored := ts.logs.errorLogs[0]
	assert.Equal(t, testAppID.String(), stored.AppID)
	assert.Equal(t, models.SeverityError, stored.Severity)
	assert.False(t, stored.Timestamp.IsZero())
}

func TestLogError_IgnoresBodyAppID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logError", map[string]any{
		"message":  "boom",
		"source":   "backend",
		"severity": "error",
		"app_id":   otherAppID.String(), // spoofing attempt
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	require.Len(t, ts.logs.errorLogs, 1)
	assert.Equal(t, testAppID.String(), ts.logs.errorLogs[0].AppID)
}

func TestLogError_400_InvalidSeverity(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logError", map[string]any{
		"message":  "boom",
		"source":   "backend",
		"severity": "catastrophic",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogError_400_MissingSeverity(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logError", map[string]any{
		"message": "boom",
		"source":  "backend",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	assert.Empty(t, ts.logs.errorLogs)
}

func TestLogError_403_SessionCredential(t *testing.T) {
	ts := newTestServer(t)

	// A dashboard session must not be able to inject telemetry.
	resp := ts.dashRequest(t, "/api/v1/logs.logError", map[string]any{
		"message":  "boom",
		"source":   "backend",
		"severity": "error",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogError_401_NoCredential(t *testing.T) {
	ts := newTestServer(t)

	req := ts.newRequest(t, "/api/v1/logs.logError", map[string]any{
		"message":  "boom",
		"source":   "backend",
		"severity": "error",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogPerformance_201(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logPerformance", map[string]any{
		"endpoint":      "/api/checkout",
		"method":        "POST",
		"response_time": 182.5,
		"status_code":   200,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])
}

func TestLogPerformance_400_MissingStatusCode(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.sdkRequest(t, "/api/v1/logs.logPerformance", map[string]any{
		"endpoint":      "/api/checkout",
		"method":        "POST",
		"response_time": 182.5,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	assert.Empty(t, ts.logs.perfLogs)
}

// ─── apps procedures ─────────────────────────────────────────────────────────

func TestAppsList_200_TeamScoped(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.list", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].([]any)
	require.Len(t, data, 1) // the rival team's app is invisible
	app := data[0].(map[string]any)
	assert.Equal(t, testAppID.String(), app["id"])
}

func TestAppsCreate_201_GeneratesKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.create", map[string]any{
		"name": "billing",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	key := data["api_key"].(string)
	assert.True(t, len(key) == len(testAppKey))
	assert.Contains(t, key, "dp_live_")
	assert.Equal(t, "active", data["status"])
}

func TestAppsGet_404_OtherTeamApp(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.get", map[string]any{
		"id": otherAppID.String(),
	})
	defer resp.Body.Close()
	// Cross-tenant lookups are indistinguishable from missing resources.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppsRotateKey_OldKeyStopsResolving(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.rotateKey", map[string]any{
		"id": testAppID.String(),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.NotEqual(t, testAppKey, data["api_key"])

	// The old key must be dead immediately.
	stale := ts.sdkRequest(t, "/api/v1/logs.logError", map[string]any{
		"message": "boom", "source": "backend",
	})
	defer stale.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)
}

func TestAppsCreateToken_201_RawShownOnce(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.createToken", map[string]any{
		"app_id": testAppID.String(),
		"name":   "ci-token",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	raw := data["token"].(string)
	assert.Contains(t, raw, "dpt_")

	// Listing must never expose the raw token or its hash.
	list := ts.dashRequest(t, "/api/v1/apps.listTokens", map[string]any{
		"app_id": testAppID.String(),
	})
	assert.Equal(t, http.StatusOK, list.StatusCode)
	tokens := parseBody(t, list)["data"].([]any)
	require.Len(t, tokens, 1)
	tok := tokens[0].(map[string]any)
	assert.NotContains(t, tok, "token_hash")
	assert.Equal(t, "ci-token", tok["name"])
}

func TestAppsCreateToken_404_OtherTeamApp(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.createToken", map[string]any{
		"app_id": otherAppID.String(),
		"name":   "sneaky",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPersonalToken_ResolvesLikeAppKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/apps.createToken", map[string]any{
		"app_id": testAppID.String(),
		"name":   "ci-token",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := parseBody(t, resp)["data"].(map[string]any)["token"].(string)

	req := ts.newRequest(t, "/api/v1/apps.list", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, listResp.StatusCode)
	data := parseBody(t, listResp)["data"].([]any)
	assert.Len(t, data, 1)
}

// ─── log read procedures ─────────────────────────────────────────────────────

func TestGetErrors_200_ScopedToTeam(t *testing.T) {
	ts := newTestServer(t)
	ts.seedErrorLog(t, testAppID, models.SeverityError)
	ts.seedErrorLog(t, otherAppID, models.SeverityCritical) // other tenant

	resp := ts.dashRequest(t, "/api/v1/logs.getErrors", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := parseBody(t, resp)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])
}

func TestGetErrors_SeverityFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.seedErrorLog(t, testAppID, models.SeverityError)
	ts.seedErrorLog(t, testAppID, models.SeverityCritical)

	resp := ts.dashRequest(t, "/api/v1/logs.getErrors", map[string]any{
		"severity": "critical",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].([]any)
	assert.Len(t, data, 1)
}

func TestGetError_404_OutsideScope(t *testing.T) {
	ts := newTestServer(t)
	foreignID := ts.seedErrorLog(t, otherAppID, models.SeverityError)

	resp := ts.dashRequest(t, "/api/v1/logs.getError", map[string]any{
		"id": foreignID,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveError_200_RecordsResolver(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedErrorLog(t, testAppID, models.SeverityError)

	resp := ts.dashRequest(t, "/api/v1/logs.resolveError", map[string]any{
		"id": id,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["resolved"])
	assert.Equal(t, testUserID.String(), data["resolved_by"])
	assert.NotEmpty(t, data["resolved_at"])
}

func TestGetErrorStats_200(t *testing.T) {
	ts := newTestServer(t)
	ts.seedErrorLog(t, testAppID, models.SeverityError)
	ts.seedErrorLog(t, testAppID, models.SeverityCritical)
	ts.seedErrorLog(t, otherAppID, models.SeverityError)

	resp := ts.dashRequest(t, "/api/v1/logs.getErrorStats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total_errors"])
}

// ─── github procedures ───────────────────────────────────────────────────────

func TestGitHubConnect_200_ThenGet(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/github.connect", map[string]any{
		"installation_id": "inst-123",
		"repos":           []string{"acme/checkout", "acme/api"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := ts.dashRequest(t, "/api/v1/github.getIntegration", nil)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	data := parseBody(t, got)["data"].(map[string]any)
	assert.Equal(t, true, data["is_active"])
	assert.NotContains(t, data, "webhook_secret")
}

func TestGitHubDisconnect_404_NoIntegration(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/github.disconnect", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetEvents_200_TeamScoped(t *testing.T) {
	ts := newTestServer(t)
	ts.seedIssueEvent(t, testTeamID, "open")
	ts.seedIssueEvent(t, otherTeamID, "open")

	resp := ts.dashRequest(t, "/api/v1/github.getEvents", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].([]any)
	assert.Len(t, data, 1)
}

func TestProcessEvent_200_WithSummary(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedIssueEvent(t, testTeamID, "open")

	resp := ts.dashRequest(t, "/api/v1/github.processEvent", map[string]any{
		"id":        id,
		"summarize": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["processed"])
	assert.Equal(t, "Mock completion for testing", data["ai_summary"])
}

func TestProcessEvent_SummaryFailureStillProcesses(t *testing.T) {
	ts := newTestServerWithAI(t, mock.NewFailingProvider(ai.ErrProviderUnavailable))
	id := ts.seedIssueEvent(t, testTeamID, "open")

	resp := ts.dashRequest(t, "/api/v1/github.processEvent", map[string]any{
		"id":        id,
		"summarize": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["processed"])
	assert.Nil(t, data["ai_summary"])
}

func TestGetIssues_200_Projection(t *testing.T) {
	ts := newTestServer(t)
	ts.seedIssueEvent(t, testTeamID, "open")
	ts.seedIssueEvent(t, testTeamID, "closed")

	resp := ts.dashRequest(t, "/api/v1/github.getIssues", map[string]any{
		"state": "open",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].([]any)
	require.Len(t, data, 1)
	issue := data[0].(map[string]any)
	assert.Equal(t, float64(42), issue["number"])
	assert.Equal(t, "Checkout crashes on empty cart", issue["title"])
	assert.Equal(t, "grumpy-dev", issue["author_name"])
}

// ─── ai procedures ───────────────────────────────────────────────────────────

func TestSuggestResolution_200(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedErrorLog(t, testAppID, models.SeverityError)

	resp := ts.dashRequest(t, "/api/v1/ai.suggestResolution", map[string]any{
		"id": id,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "mock", data["provider"])
	assert.NotEmpty(t, data["content"])
}

func TestSummarizeErrors_400_NothingToAnalyze(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.dashRequest(t, "/api/v1/ai.summarizeErrors", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummarizeErrors_502_ProviderDown(t *testing.T) {
	ts := newTestServerWithAI(t, mock.NewFailingProvider(ai.ErrProviderUnavailable))
	ts.seedErrorLog(t, testAppID, models.SeverityError)

	resp := ts.dashRequest(t, "/api/v1/ai.summarizeErrors", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "UPSTREAM_ERROR", errObj["code"])
}

func TestGenerateBugReport_200(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedIssueEvent(t, testTeamID, "open")

	resp := ts.dashRequest(t, "/api/v1/ai.generateBugReport", map[string]any{
		"event_id": id,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.NotEmpty(t, data["content"])
}

// ─── webhook endpoint ────────────────────────────────────────────────────────

func webhookDelivery(t *testing.T, ts *testServer, event string, body []byte, sign bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/webhooks/github", bytes.NewReader(body))
	require.NoError(t, err)
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if sign {
		req.Header.Set("X-Hub-Signature-256", webhook.Sign(webhookSecret, body))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestWebhook_200_StoresEvent(t *testing.T) {
	ts := newTestServer(t)
	ts.dashRequest(t, "/api/v1/github.connect", map[string]any{
		"installation_id": "inst-123",
		"repos":           []string{"acme/checkout"},
	}).Body.Close()

	body, _ := json.Marshal(map[string]any{
		"repository": map[string]any{"full_name": "acme/checkout"},
		"commits":    []any{map[string]any{"message": "fix rounding"}},
	})
	resp := webhookDelivery(t, ts, "push", body, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "Event stored", data["message"])
	assert.Equal(t, "push", data["event"])
	assert.Equal(t, "acme/checkout", data["repository"])
	assert.NotEmpty(t, data["event_id"])

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	require.Len(t, ts.logs.events, 1)
	assert.Equal(t, testTeamID.String(), ts.logs.events[0].TeamID)
}

func TestWebhook_GET_EchoesChallenge(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/api/webhooks/github?hub.challenge=abc123")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(raw))
}

func TestWebhook_GET_NoChallenge(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/api/webhooks/github")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Contains(t, data["message"], "webhook endpoint")
}

func TestWebhook_401_BadSignature(t *testing.T) {
	ts := newTestServer(t)

	body := []byte(`{"repository":{"full_name":"acme/checkout"}}`)
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/webhooks/github", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_400_MissingHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp := webhookDelivery(t, ts, "", []byte(`{}`), true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_200_UnconfiguredRepo(t *testing.T) {
	ts := newTestServer(t)

	body := []byte(`{"repository":{"full_name":"unknown/repo"}}`)
	resp := webhookDelivery(t, ts, "push", body, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "Repository not configured", data["message"])

	ts.logs.mu.Lock()
	defer ts.logs.mu.Unlock()
	assert.Empty(t, ts.logs.events)
}

// ─── session edge cases ──────────────────────────────────────────────────────

func TestDashboard_403_UserWithoutTeam(t *testing.T) {
	ts := newTestServer(t)
	lonely := &models.User{ID: uuid.New(), Email: "lonely@acme.test", Name: "Lonely"}
	require.NoError(t, ts.store.CreateUser(context.Background(), lonely))

	req := ts.newRequest(t, "/api/v1/apps.list", nil)
	req.Header.Set("X-Authenticated-Email", lonely.Email)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "FORBIDDEN", errObj["code"])
}

func TestDashboard_401_UnknownSessionEmail(t *testing.T) {
	ts := newTestServer(t)

	req := ts.newRequest(t, "/api/v1/apps.list", nil)
	req.Header.Set("X-Authenticated-Email", "ghost@acme.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
