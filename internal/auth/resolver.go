package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// ErrInvalidCredential is reported for any credential that does not resolve.
// The message never distinguishes unknown keys from revoked or expired
// tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// CredentialResolver turns a raw API credential into a Principal. App keys
// take precedence: they are resolved by exact match before any token hashing
// happens, so SDK ingestion never pays a bcrypt comparison.
type CredentialResolver struct {
	store store.Store
}

func NewCredentialResolver(s store.Store) *CredentialResolver {
	return &CredentialResolver{store: s}
}

// Resolve authenticates rawKey. The returned Principal always carries the
// app, its team, and an acting user (the app creator for app keys, the token
// creator for personal tokens).
func (r *CredentialResolver) Resolve(ctx context.Context, rawKey string) (*models.Principal, error) {
	if strings.HasPrefix(rawKey, AppKeyPrefix) {
		return r.resolveAppKey(ctx, rawKey)
	}
	if strings.HasPrefix(rawKey, TokenPrefix) {
		return r.resolveToken(ctx, rawKey)
	}
	return nil, ErrInvalidCredential
}

func (r *CredentialResolver) resolveAppKey(ctx context.Context, rawKey string) (*models.Principal, error) {
	cred, err := r.store.GetCredentialByAppKey(ctx, rawKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("resolve app key: %w", err)
	}
	return &models.Principal{App: cred.App, User: cred.User, Team: cred.Team}, nil
}

func (r *CredentialResolver) resolveToken(ctx context.Context, rawKey string) (*models.Principal, error) {
	if len(rawKey) < tokenPrefixLen {
		return nil, ErrInvalidCredential
	}

	tokens, err := r.store.GetAPITokensByPrefix(ctx, rawKey[:tokenPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("lookup tokens: %w", err)
	}

	for _, tok := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(tok.TokenHash), []byte(rawKey)) == nil {
			cred, err := r.store.GetCredentialForToken(ctx, tok.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidCredential
			}
			if err != nil {
				return nil, fmt.Errorf("resolve token: %w", err)
			}
			return &models.Principal{App: cred.App, User: cred.User, Team: cred.Team}, nil
		}
	}
	return nil, ErrInvalidCredential
}
