package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// ErrNoSession is reported when a request carries no resolvable session.
var ErrNoSession = errors.New("no session")

// SessionResolver resolves a browser session from a request. The dashboard
// frontend owns the login flow; the API only needs a way to map its session
// artifact to a user. Deployments plug in their resolver here.
type SessionResolver interface {
	ResolveSession(ctx context.Context, r *http.Request) (*models.User, error)
}

// HeaderSessionResolver trusts an upstream auth proxy that terminates the
// session and forwards the authenticated user's email. Typical for
// deployments where the API sits behind the frontend's reverse proxy.
type HeaderSessionResolver struct {
	store  store.Store
	header string
}

// NewHeaderSessionResolver creates a resolver reading the given header.
// Empty header defaults to X-Authenticated-Email.
func NewHeaderSessionResolver(s store.Store, header string) *HeaderSessionResolver {
	if header == "" {
		header = "X-Authenticated-Email"
	}
	return &HeaderSessionResolver{store: s, header: header}
}

func (h *HeaderSessionResolver) ResolveSession(ctx context.Context, r *http.Request) (*models.User, error) {
	email := r.Header.Get(h.header)
	if email == "" {
		return nil, ErrNoSession
	}

	user, err := h.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
