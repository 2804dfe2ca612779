package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/devpulse/internal/ai"
	"github.com/kiranshivaraju/devpulse/internal/ai/mock"
	"github.com/kiranshivaraju/devpulse/internal/api"
	"github.com/kiranshivaraju/devpulse/internal/api/handler"
	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/auth"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/internal/webhook"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// stubStore rejects every credential; only the lookups the auth path touches
// are implemented.
type stubStore struct {
	store.Store
}

func (s *stubStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (s *stubStore) GetCredentialByAppKey(_ context.Context, _ string) (*store.Credential, error) {
	return nil, store.ErrNotFound
}

func (s *stubStore) GetAPITokensByPrefix(_ context.Context, _ string) ([]*models.APIToken, error) {
	return nil, nil
}

func (s *stubStore) ListActiveIntegrations(_ context.Context) ([]*models.GitHubIntegration, error) {
	return nil, nil
}

type stubLogStore struct {
	logstore.LogStore
}

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func newTestRouter() http.Handler {
	ss := &stubStore{}
	ls := &stubLogStore{}
	gate := tenancy.NewGate(ss)
	aiService := ai.NewService(mock.NewMockProvider(), time.Second)

	return api.NewRouter(api.Dependencies{
		Auth:       mw.NewAuth(auth.NewCredentialResolver(ss), auth.NewHeaderSessionResolver(ss, ""), tenancy.NewBinder(ss)),
		RateLimit:  mw.NewRateLimit(&stubCache{}, 60),
		RequestLog: mw.NewRequestLog(ls, ss),

		Health: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},

		Apps:    handler.NewApps(ss),
		Logs:    handler.NewLogs(ls, gate),
		GitHub:  handler.NewGitHub(ss, ls, aiService),
		AI:      handler.NewAI(ls, gate, aiService),
		Webhook: handler.NewWebhook("whsec_router_test", webhook.NewDispatcher(ss, ls)),
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_WebhookEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	// GET probes answer without any credential.
	req := httptest.NewRequest("GET", "/api/webhooks/github", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProcedureEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	paths := []string{
		"/api/v1/logs.logError",
		"/api/v1/logs.getErrors",
		"/api/v1/apps.list",
		"/api/v1/apps.create",
		"/api/v1/github.getEvents",
		"/api/v1/ai.summarizeErrors",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "UNAUTHORIZED", errObj["code"])
		})
	}
}

func TestRouter_ProceduresArePostOnly(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/apps.list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
