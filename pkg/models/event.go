package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// GitHubEvent is a stored inbound webhook payload in the github_events
// collection, tagged with the team the dispatcher routed it to.
type GitHubEvent struct {
	ID          bson.ObjectID  `bson:"_id,omitempty"         json:"id"`
	TeamID      string         `bson:"teamId"                json:"team_id"`
	Event       string         `bson:"event"                 json:"event"`
	Repository  string         `bson:"repository"            json:"repository"`
	Action      *string        `bson:"action,omitempty"      json:"action,omitempty"`
	Payload     map[string]any `bson:"payload"               json:"payload"`
	Timestamp   time.Time      `bson:"timestamp"             json:"timestamp"`
	Processed   bool           `bson:"processed"             json:"processed"`
	ProcessedAt *time.Time     `bson:"processedAt,omitempty" json:"processed_at,omitempty"`
	AISummary   *string        `bson:"aiSummary,omitempty"   json:"ai_summary,omitempty"`
}

// EventStats is the output of the grouped-count aggregation over stored
// GitHub events.
type EventStats struct {
	TotalEvents int64            `json:"total_events"`
	ByEvent     map[string]int64 `json:"by_event"`
	ByRepo      map[string]int64 `json:"by_repo"`
}

// Issue is the projection of a stored `issues` event into the shape the
// dashboard renders. There is no GitHub API sync; everything comes from the
// stored webhook payload.
type Issue struct {
	ID         string    `json:"id"`
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	State      string    `json:"state"`
	URL        string    `json:"url"`
	AuthorName string    `json:"author_name"`
	Repository string    `json:"repository"`
	CreatedAt  time.Time `json:"created_at"`
	AISummary  *string   `json:"ai_summary,omitempty"`
}
