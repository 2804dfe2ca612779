package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Credential is the tenancy context a resolved API credential carries: the
// app the credential belongs to, the user who created it, and the owning team.
type Credential struct {
	App  *models.App
	User *models.User
	Team *models.Team
}

// AppUpdate holds the optional fields of an app update. Nil fields are left
// unchanged.
type AppUpdate struct {
	Name        *string
	Description *string
	GitHubRepo  *string
	Status      *string
}

// Store is the relational data access interface. All Postgres operations go
// through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateTeam(ctx context.Context, t *models.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	AddTeamMember(ctx context.Context, m *models.TeamMember) error
	// FirstTeamForUser returns the team of the user's earliest membership,
	// ordered by (created_at, id) for a stable result. ErrNotFound when the
	// user belongs to no team.
	FirstTeamForUser(ctx context.Context, userID uuid.UUID) (*models.Team, error)

	CreateApp(ctx context.Context, a *models.App) error
	// GetApp is team-scoped: an app outside teamID reports ErrNotFound.
	GetApp(ctx context.Context, id, teamID uuid.UUID) (*models.App, error)
	ListApps(ctx context.Context, teamID uuid.UUID) ([]*models.App, error)
	// ListAppIDs enumerates the ids of every app the team owns at call time.
	// Callers must not cache the result across requests.
	ListAppIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
	UpdateApp(ctx context.Context, id, teamID uuid.UUID, upd AppUpdate) (*models.App, error)
	DeleteApp(ctx context.Context, id, teamID uuid.UUID) error
	RotateAppKey(ctx context.Context, id, teamID uuid.UUID, newKey string) (*models.App, error)

	// GetCredentialByAppKey resolves an app API key (exact match) to its
	// tenancy context.
	GetCredentialByAppKey(ctx context.Context, apiKey string) (*Credential, error)
	// GetAPITokensByPrefix returns active, unexpired tokens sharing a prefix;
	// the caller compares the bcrypt hashes.
	GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error)
	// GetCredentialForToken resolves a matched personal token to the tenancy
	// context of its app, with the token's creator as the acting user.
	GetCredentialForToken(ctx context.Context, tokenID uuid.UUID) (*Credential, error)

	CreateAPIToken(ctx context.Context, t *models.APIToken) error
	ListAPITokens(ctx context.Context, appID, teamID uuid.UUID) ([]*models.APIToken, error)
	RevokeAPIToken(ctx context.Context, id, teamID uuid.UUID) error

	GetIntegration(ctx context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error)
	UpsertIntegration(ctx context.Context, g *models.GitHubIntegration) (*models.GitHubIntegration, error)
	DisableIntegration(ctx context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error)
	ListActiveIntegrations(ctx context.Context) ([]*models.GitHubIntegration, error)

	// UpsertAppMetricDelta folds one SDK request into the app's daily rollup
	// row, maintaining a running average response time.
	UpsertAppMetricDelta(ctx context.Context, appID uuid.UUID, day time.Time, requests, errs int, responseTimeMs float64) error
	ListAppMetrics(ctx context.Context, appID uuid.UUID, since time.Time) ([]*models.AppMetric, error)
}
