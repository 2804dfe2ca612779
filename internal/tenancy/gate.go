package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/devpulse/internal/store"
)

// Scope is the set of app ids a request may read. It is computed fresh per
// request from the acting team and must never be cached across requests.
// AppIDs are strings because the document store keys logs by the app id's
// text form.
type Scope struct {
	TeamID uuid.UUID
	AppIDs []string
}

// Gate computes query scopes. An appID narrowing request is verified against
// the team first; an app outside the team reports store.ErrNotFound rather
// than a forbidden error, so cross-tenant probing cannot distinguish "exists
// elsewhere" from "does not exist".
type Gate struct {
	store store.Store
}

func NewGate(s store.Store) *Gate {
	return &Gate{store: s}
}

// Bind returns the scope for teamID, optionally narrowed to a single app.
// A team with no apps yields an empty scope, which matches no documents.
func (g *Gate) Bind(ctx context.Context, teamID uuid.UUID, appID *uuid.UUID) (*Scope, error) {
	if appID != nil {
		if _, err := g.store.GetApp(ctx, *appID, teamID); err != nil {
			return nil, err
		}
		return &Scope{TeamID: teamID, AppIDs: []string{appID.String()}}, nil
	}

	ids, err := g.store.ListAppIDs(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team apps: %w", err)
	}

	appIDs := make([]string, len(ids))
	for i, id := range ids {
		appIDs[i] = id.String()
	}
	return &Scope{TeamID: teamID, AppIDs: appIDs}, nil
}
