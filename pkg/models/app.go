package models

import (
	"time"

	"github.com/google/uuid"
)

// App lifecycle statuses.
const (
	AppStatusActive   = "active"
	AppStatusInactive = "inactive"
	AppStatusError    = "error"
)

// App is a registered tenant application emitting telemetry through the SDK.
// APIKey is the bearer credential the SDK ingestion path authenticates with.
type App struct {
	ID          uuid.UUID `db:"id"            json:"id"`
	Name        string    `db:"name"          json:"name"`
	Description *string   `db:"description"   json:"description,omitempty"`
	Status      string    `db:"status"        json:"status"`
	APIKey      string    `db:"api_key"       json:"api_key"`
	GitHubRepo  *string   `db:"github_repo"   json:"github_repo,omitempty"`
	TeamID      uuid.UUID `db:"team_id"       json:"team_id"`
	CreatedByID uuid.UUID `db:"created_by_id" json:"created_by_id"`
	CreatedAt   time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"    json:"updated_at"`
}

// AppMetric is a daily rollup of SDK traffic for one app.
type AppMetric struct {
	ID                uuid.UUID `db:"id"                   json:"id"`
	AppID             uuid.UUID `db:"app_id"               json:"app_id"`
	Date              time.Time `db:"date"                 json:"date"`
	RequestsTotal     int       `db:"requests_total"       json:"requests_total"`
	ErrorsTotal       int       `db:"errors_total"         json:"errors_total"`
	AvgResponseTimeMs int       `db:"avg_response_time_ms" json:"avg_response_time_ms"`
	CreatedAt         time.Time `db:"created_at"           json:"created_at"`
}
