package models

import (
	"time"

	"github.com/google/uuid"
)

// GitHubIntegration maps inbound webhook events to a team. The webhook
// dispatcher scans active integrations for one whose repo set contains the
// event's repository full name; first match wins.
type GitHubIntegration struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	TeamID         uuid.UUID `db:"team_id"         json:"team_id"`
	InstallationID string    `db:"installation_id" json:"installation_id"`
	Repos          []string  `db:"repos"           json:"repos"`
	WebhookSecret  string    `db:"webhook_secret"  json:"-"`
	IsActive       bool      `db:"is_active"       json:"is_active"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// HasRepo reports whether the integration claims the given repository
// full name (e.g. "acme/api").
func (g *GitHubIntegration) HasRepo(fullName string) bool {
	for _, r := range g.Repos {
		if r == fullName {
			return true
		}
	}
	return false
}
