package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, avatar_url, github_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.AvatarURL, u.GitHubID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, avatar_url, github_id, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.GitHubID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// --- Teams ---

func (s *PostgresStore) CreateTeam(ctx context.Context, t *models.Team) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id, name, slug, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Slug, t.OwnerID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var t models.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, owner_id, created_at, updated_at FROM teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) AddTeamMember(ctx context.Context, m *models.TeamMember) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_members (id, team_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.TeamID, m.UserID, m.Role, m.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FirstTeamForUser(ctx context.Context, userID uuid.UUID) (*models.Team, error) {
	var t models.Team
	err := s.pool.QueryRow(ctx,
		`SELECT t.id, t.name, t.slug, t.owner_id, t.created_at, t.updated_at
		 FROM team_members m
		 JOIN teams t ON t.id = m.team_id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at, m.id
		 LIMIT 1`, userID,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("first team for user: %w", err)
	}
	return &t, nil
}

// --- Apps ---

const appColumns = `id, name, description, status, api_key, github_repo, team_id, created_by_id, created_at, updated_at`

func scanApp(row pgx.Row) (*models.App, error) {
	var a models.App
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Status, &a.APIKey, &a.GitHubRepo,
		&a.TeamID, &a.CreatedByID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CreateApp(ctx context.Context, a *models.App) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO apps (id, name, description, status, api_key, github_repo, team_id, created_by_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Name, a.Description, a.Status, a.APIKey, a.GitHubRepo,
		a.TeamID, a.CreatedByID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApp(ctx context.Context, id, teamID uuid.UUID) (*models.App, error) {
	a, err := scanApp(s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM apps WHERE id = $1 AND team_id = $2`, id, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListApps(ctx context.Context, teamID uuid.UUID) ([]*models.App, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appColumns+` FROM apps WHERE team_id = $1 ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) ListAppIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM apps WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list app ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan app id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) UpdateApp(ctx context.Context, id, teamID uuid.UUID, upd AppUpdate) (*models.App, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, teamID}
	argIdx := 3

	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *upd.Name)
		argIdx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *upd.Description)
		argIdx++
	}
	if upd.GitHubRepo != nil {
		sets = append(sets, fmt.Sprintf("github_repo = $%d", argIdx))
		args = append(args, *upd.GitHubRepo)
		argIdx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *upd.Status)
		argIdx++
	}

	query := fmt.Sprintf(
		`UPDATE apps SET %s WHERE id = $1 AND team_id = $2 RETURNING %s`,
		strings.Join(sets, ", "), appColumns)

	a, err := scanApp(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update app: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) DeleteApp(ctx context.Context, id, teamID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM apps WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RotateAppKey(ctx context.Context, id, teamID uuid.UUID, newKey string) (*models.App, error) {
	a, err := scanApp(s.pool.QueryRow(ctx,
		`UPDATE apps SET api_key = $3, updated_at = NOW()
		 WHERE id = $1 AND team_id = $2 RETURNING `+appColumns,
		id, teamID, newKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rotate app key: %w", err)
	}
	return a, nil
}

// --- Credentials ---

func (s *PostgresStore) GetCredentialByAppKey(ctx context.Context, apiKey string) (*Credential, error) {
	var (
		a models.App
		u models.User
		t models.Team
	)
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.name, a.description, a.status, a.api_key, a.github_repo, a.team_id, a.created_by_id, a.created_at, a.updated_at,
		        u.id, u.email, u.name, u.avatar_url, u.github_id, u.created_at, u.updated_at,
		        t.id, t.name, t.slug, t.owner_id, t.created_at, t.updated_at
		 FROM apps a
		 JOIN users u ON u.id = a.created_by_id
		 JOIN teams t ON t.id = a.team_id
		 WHERE a.api_key = $1`, apiKey,
	).Scan(
		&a.ID, &a.Name, &a.Description, &a.Status, &a.APIKey, &a.GitHubRepo, &a.TeamID, &a.CreatedByID, &a.CreatedAt, &a.UpdatedAt,
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.GitHubID, &u.CreatedAt, &u.UpdatedAt,
		&t.ID, &t.Name, &t.Slug, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential by app key: %w", err)
	}
	return &Credential{App: &a, User: &u, Team: &t}, nil
}

func (s *PostgresStore) GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, app_id, created_by_id, name, token_prefix, token_hash, expires_at, is_active, created_at
		 FROM api_tokens
		 WHERE token_prefix = $1 AND is_active AND (expires_at IS NULL OR expires_at > NOW())`,
		prefix)
	if err != nil {
		return nil, fmt.Errorf("get api tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*models.APIToken
	for rows.Next() {
		var tk models.APIToken
		if err := rows.Scan(&tk.ID, &tk.AppID, &tk.CreatedByID, &tk.Name, &tk.TokenPrefix,
			&tk.TokenHash, &tk.ExpiresAt, &tk.IsActive, &tk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		tokens = append(tokens, &tk)
	}
	return tokens, rows.Err()
}

func (s *PostgresStore) GetCredentialForToken(ctx context.Context, tokenID uuid.UUID) (*Credential, error) {
	var (
		a models.App
		u models.User
		t models.Team
	)
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.name, a.description, a.status, a.api_key, a.github_repo, a.team_id, a.created_by_id, a.created_at, a.updated_at,
		        u.id, u.email, u.name, u.avatar_url, u.github_id, u.created_at, u.updated_at,
		        t.id, t.name, t.slug, t.owner_id, t.created_at, t.updated_at
		 FROM api_tokens tk
		 JOIN apps a ON a.id = tk.app_id
		 JOIN users u ON u.id = tk.created_by_id
		 JOIN teams t ON t.id = a.team_id
		 WHERE tk.id = $1`, tokenID,
	).Scan(
		&a.ID, &a.Name, &a.Description, &a.Status, &a.APIKey, &a.GitHubRepo, &a.TeamID, &a.CreatedByID, &a.CreatedAt, &a.UpdatedAt,
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.GitHubID, &u.CreatedAt, &u.UpdatedAt,
		&t.ID, &t.Name, &t.Slug, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for token: %w", err)
	}
	return &Credential{App: &a, User: &u, Team: &t}, nil
}

// --- API Tokens ---

func (s *PostgresStore) CreateAPIToken(ctx context.Context, tk *models.APIToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_tokens (id, app_id, created_by_id, name, token_prefix, token_hash, expires_at, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tk.ID, tk.AppID, tk.CreatedByID, tk.Name, tk.TokenPrefix, tk.TokenHash,
		tk.ExpiresAt, tk.IsActive, tk.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api token: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPITokens(ctx context.Context, appID, teamID uuid.UUID) ([]*models.APIToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tk.id, tk.app_id, tk.created_by_id, tk.name, tk.token_prefix, tk.token_hash, tk.expires_at, tk.is_active, tk.created_at
		 FROM api_tokens tk
		 JOIN apps a ON a.id = tk.app_id
		 WHERE tk.app_id = $1 AND a.team_id = $2
		 ORDER BY tk.created_at DESC`, appID, teamID)
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.APIToken
	for rows.Next() {
		var tk models.APIToken
		if err := rows.Scan(&tk.ID, &tk.AppID, &tk.CreatedByID, &tk.Name, &tk.TokenPrefix,
			&tk.TokenHash, &tk.ExpiresAt, &tk.IsActive, &tk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		tokens = append(tokens, &tk)
	}
	return tokens, rows.Err()
}

func (s *PostgresStore) RevokeAPIToken(ctx context.Context, id, teamID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_tokens tk SET is_active = FALSE
		 FROM apps a
		 WHERE tk.id = $1 AND a.id = tk.app_id AND a.team_id = $2 AND tk.is_active`,
		id, teamID)
	if err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- GitHub Integrations ---

const integrationColumns = `id, team_id, installation_id, repos, webhook_secret, is_active, created_at, updated_at`

func scanIntegration(row pgx.Row) (*models.GitHubIntegration, error) {
	var g models.GitHubIntegration
	err := row.Scan(&g.ID, &g.TeamID, &g.InstallationID, &g.Repos, &g.WebhookSecret,
		&g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PostgresStore) GetIntegration(ctx context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error) {
	g, err := scanIntegration(s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM github_integrations WHERE team_id = $1`, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) UpsertIntegration(ctx context.Context, g *models.GitHubIntegration) (*models.GitHubIntegration, error) {
	out, err := scanIntegration(s.pool.QueryRow(ctx,
		`INSERT INTO github_integrations (id, team_id, installation_id, repos, webhook_secret, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (team_id) DO UPDATE SET
		   installation_id = EXCLUDED.installation_id,
		   repos = EXCLUDED.repos,
		   webhook_secret = EXCLUDED.webhook_secret,
		   is_active = TRUE,
		   updated_at = NOW()
		 RETURNING `+integrationColumns,
		g.ID, g.TeamID, g.InstallationID, g.Repos, g.WebhookSecret, g.IsActive,
		g.CreatedAt, g.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert integration: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DisableIntegration(ctx context.Context, teamID uuid.UUID) (*models.GitHubIntegration, error) {
	g, err := scanIntegration(s.pool.QueryRow(ctx,
		`UPDATE github_integrations SET is_active = FALSE, updated_at = NOW()
		 WHERE team_id = $1 RETURNING `+integrationColumns, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("disable integration: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListActiveIntegrations(ctx context.Context) ([]*models.GitHubIntegration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+integrationColumns+` FROM github_integrations WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*models.GitHubIntegration
	for rows.Next() {
		g, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		integrations = append(integrations, g)
	}
	return integrations, rows.Err()
}

// --- App Metrics ---

func (s *PostgresStore) UpsertAppMetricDelta(ctx context.Context, appID uuid.UUID, day time.Time, requests, errs int, responseTimeMs float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO app_metrics (id, app_id, date, requests_total, errors_total, avg_response_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (app_id, date) DO UPDATE SET
		   requests_total = app_metrics.requests_total + EXCLUDED.requests_total,
		   errors_total = app_metrics.errors_total + EXCLUDED.errors_total,
		   avg_response_time_ms = CASE
		     WHEN app_metrics.requests_total + EXCLUDED.requests_total > 0 THEN
		       (app_metrics.avg_response_time_ms * app_metrics.requests_total
		        + EXCLUDED.avg_response_time_ms * EXCLUDED.requests_total)
		       / (app_metrics.requests_total + EXCLUDED.requests_total)
		     ELSE 0
		   END`,
		uuid.New(), appID, day.UTC().Truncate(24*time.Hour), requests, errs, int(responseTimeMs))
	if err != nil {
		return fmt.Errorf("upsert app metric: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAppMetrics(ctx context.Context, appID uuid.UUID, since time.Time) ([]*models.AppMetric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, app_id, date, requests_total, errors_total, avg_response_time_ms, created_at
		 FROM app_metrics WHERE app_id = $1 AND date >= $2 ORDER BY date DESC`, appID, since)
	if err != nil {
		return nil, fmt.Errorf("list app metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.AppMetric
	for rows.Next() {
		var m models.AppMetric
		if err := rows.Scan(&m.ID, &m.AppID, &m.Date, &m.RequestsTotal, &m.ErrorsTotal,
			&m.AvgResponseTimeMs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan app metric: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
