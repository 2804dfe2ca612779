package logstore

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/devpulse/pkg/logquery"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

var ErrNotFound = errors.New("document not found")

// Page bounds a listing query. Zero Limit falls back to DefaultLimit.
type Page struct {
	Limit  int64
	Offset int64
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Bounded returns the page with its limit clamped to [1, MaxLimit].
func (p Page) Bounded() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// LogStore is the document data access interface. All reads take scope-bearing
// filter params built by pkg/logquery; callers obtain the scope from the query
// gate, never from request input.
type LogStore interface {
	Ping(ctx context.Context) error

	InsertErrorLog(ctx context.Context, log *models.ErrorLog) (string, error)
	ListErrorLogs(ctx context.Context, p logquery.ErrorParams, page Page) ([]*models.ErrorLog, int64, error)
	GetErrorLog(ctx context.Context, id string, appIDs []string) (*models.ErrorLog, error)
	// ResolveErrorLog marks an error resolved and returns the updated document.
	// Resolving an already-resolved error overwrites resolvedAt and resolvedBy.
	ResolveErrorLog(ctx context.Context, id string, appIDs []string, resolvedBy string) (*models.ErrorLog, error)
	ErrorStats(ctx context.Context, appIDs []string, since time.Time) (*models.ErrorStats, error)

	InsertPerformanceLog(ctx context.Context, log *models.PerformanceLog) (string, error)
	ListPerformanceLogs(ctx context.Context, p logquery.PerformanceParams, page Page) ([]*models.PerformanceLog, int64, error)
	PerformanceStats(ctx context.Context, appIDs []string, since time.Time) (*models.PerformanceStats, error)

	InsertAPIRequest(ctx context.Context, req *models.APIRequest) error

	InsertGitHubEvent(ctx context.Context, ev *models.GitHubEvent) (string, error)
	ListGitHubEvents(ctx context.Context, p logquery.EventParams, page Page) ([]*models.GitHubEvent, int64, error)
	GetGitHubEvent(ctx context.Context, id, teamID string) (*models.GitHubEvent, error)
	// MarkEventProcessed sets processed and processedAt. A nil summary leaves
	// any existing aiSummary untouched, so reprocessing is idempotent.
	MarkEventProcessed(ctx context.Context, id, teamID string, aiSummary *string) (*models.GitHubEvent, error)
	EventStats(ctx context.Context, teamID string, since time.Time) (*models.EventStats, error)
	// ListIssues projects stored `issues` webhook events into dashboard issue
	// rows. state filters on the issue state inside the payload; empty means
	// all states.
	ListIssues(ctx context.Context, teamID, state string, page Page) ([]*models.Issue, error)
}
