// Package models contains shared data models used across the DevPulse codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a dashboard identity. Users are provisioned by the signup flow,
// which lives outside this service; this core only reads them.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	Name      string    `db:"name"       json:"name"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	GitHubID  *string   `db:"github_id"  json:"github_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
