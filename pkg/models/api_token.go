package models

import (
	"time"

	"github.com/google/uuid"
)

// APIToken is a personal, revocable credential bound to one app and the user
// who created it. Raw tokens are shown once at creation; only the bcrypt hash
// is stored. Distinct from App.APIKey, which is the app's own SDK credential —
// the identity resolver tries the app key first, then falls back to tokens.
type APIToken struct {
	ID          uuid.UUID  `db:"id"            json:"id"`
	AppID       uuid.UUID  `db:"app_id"        json:"app_id"`
	CreatedByID uuid.UUID  `db:"created_by_id" json:"created_by_id"`
	Name        string     `db:"name"          json:"name"`
	TokenPrefix string     `db:"token_prefix"  json:"token_prefix"`
	TokenHash   string     `db:"token_hash"    json:"-"`
	ExpiresAt   *time.Time `db:"expires_at"    json:"expires_at,omitempty"`
	IsActive    bool       `db:"is_active"     json:"is_active"`
	CreatedAt   time.Time  `db:"created_at"    json:"created_at"`
}
