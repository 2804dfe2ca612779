package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/auth"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// Auth resolves request identity. API credentials (X-API-Key or Bearer) are
// tried first; a browser session is the fallback. Credential requests arrive
// with their team already bound; session users get their first team through
// the binder.
type Auth struct {
	credentials *auth.CredentialResolver
	sessions    auth.SessionResolver
	binder      *tenancy.Binder
}

// NewAuth creates the auth middleware.
func NewAuth(c *auth.CredentialResolver, s auth.SessionResolver, b *tenancy.Binder) *Auth {
	return &Auth{credentials: c, sessions: s, binder: b}
}

// Authenticate rejects requests with no resolvable identity and stores the
// Principal for everything downstream.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rawKey := extractAPIKey(r); rawKey != "" {
			principal, err := a.credentials.Resolve(r.Context(), rawKey)
			if errors.Is(err, auth.ErrInvalidCredential) {
				response.Error(w, http.StatusUnauthorized,
					response.CodeUnauthorized, "Invalid API key", nil)
				return
			}
			if err != nil {
				response.Error(w, http.StatusInternalServerError,
					response.CodeInternalError, "Failed to validate API key", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), principal)))
			return
		}

		user, err := a.sessions.ResolveSession(r.Context(), r)
		if errors.Is(err, auth.ErrNoSession) {
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthorized, "Authentication required", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				response.CodeInternalError, "Failed to resolve session", nil)
			return
		}

		team, err := a.binder.Bind(r.Context(), user.ID)
		if errors.Is(err, tenancy.ErrNoTeamMembership) {
			response.Error(w, http.StatusForbidden,
				response.CodeForbidden, "No team membership", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				response.CodeInternalError, "Failed to resolve team", nil)
			return
		}

		principal := &models.Principal{User: user, Team: team}
		next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), principal)))
	})
}

// RequireApp guards SDK ingestion routes: the principal must carry an app
// credential, not just a dashboard session.
func (a *Auth) RequireApp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r)
		if !ok || p.App == nil {
			response.Error(w, http.StatusForbidden,
				response.CodeForbidden, "App API key required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
