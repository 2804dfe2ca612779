package models

import (
	"time"

	"github.com/google/uuid"
)

// Team membership roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Team is the tenant boundary. Every app, integration, and log record
// belongs to exactly one team.
type Team struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Slug      string    `db:"slug"       json:"slug"`
	OwnerID   uuid.UUID `db:"owner_id"   json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TeamID    uuid.UUID `db:"team_id"    json:"team_id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	Role      string    `db:"role"       json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
