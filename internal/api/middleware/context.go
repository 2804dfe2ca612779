package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/devpulse/pkg/models"
)

type contextKey string

const principalKey contextKey = "principal"

// SetPrincipal stores the resolved principal on the context.
func SetPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the principal resolved by the auth middleware.
func GetPrincipal(r *http.Request) (*models.Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*models.Principal)
	return p, ok
}
