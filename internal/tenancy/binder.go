// Package tenancy binds authenticated users to a team and turns that team
// into a query scope every data read is pinned to.
package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// ErrNoTeamMembership is reported when a user belongs to no team. Callers map
// it to a forbidden response: the user is authenticated but has no tenant.
var ErrNoTeamMembership = errors.New("user belongs to no team")

// Binder resolves the acting team for a user. Users can belong to several
// teams; the binder always picks the earliest membership so the choice is
// deterministic across requests.
type Binder struct {
	store store.Store
}

func NewBinder(s store.Store) *Binder {
	return &Binder{store: s}
}

// Bind returns the user's acting team. The result is never cached: a
// membership change is visible on the next request.
func (b *Binder) Bind(ctx context.Context, userID uuid.UUID) (*models.Team, error) {
	team, err := b.store.FirstTeamForUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoTeamMembership
	}
	if err != nil {
		return nil, fmt.Errorf("bind team for user %s: %w", userID, err)
	}
	return team, nil
}
