// Package logquery builds MongoDB filter documents for the log store from
// typed parameter structs. All methods are pure functions with no side
// effects, so filter construction is testable without a running database.
package logquery

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Builder constructs bson.D filters. Zero value is ready to use.
type Builder struct{}

// ErrorParams defines inputs for error log queries. AppIDs is the tenancy
// scope and must be non-empty; the remaining fields narrow the result.
type ErrorParams struct {
	AppIDs   []string
	Severity string
	Source   string
	Resolved *bool
	Search   string
	Start    time.Time
	End      time.Time
}

// PerformanceParams defines inputs for performance log queries.
type PerformanceParams struct {
	AppIDs   []string
	Endpoint string
	Start    time.Time
	End      time.Time
}

// EventParams defines inputs for GitHub event queries. Events are scoped by
// team, not by app.
type EventParams struct {
	TeamID     string
	Event      string
	Repository string
	Processed  *bool
	Start      time.Time
	End        time.Time
}

// BuildErrorFilter returns the filter document for an error log query.
func (b Builder) BuildErrorFilter(p ErrorParams) bson.D {
	filter := bson.D{b.scopeByApps(p.AppIDs)}

	if p.Severity != "" {
		filter = append(filter, bson.E{Key: "severity", Value: p.Severity})
	}
	if p.Source != "" {
		filter = append(filter, bson.E{Key: "source", Value: p.Source})
	}
	if p.Resolved != nil {
		filter = append(filter, bson.E{Key: "resolved", Value: *p.Resolved})
	}
	if p.Search != "" {
		// Quoted so the search is a literal substring match; raw user input
		// would otherwise reach Mongo as a regex pattern.
		filter = append(filter, bson.E{Key: "message", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(p.Search)},
			{Key: "$options", Value: "i"},
		}})
	}
	if tr := b.buildTimeRange(p.Start, p.End); tr != nil {
		filter = append(filter, bson.E{Key: "timestamp", Value: tr})
	}

	return filter
}

// BuildPerformanceFilter returns the filter document for a performance query.
func (b Builder) BuildPerformanceFilter(p PerformanceParams) bson.D {
	filter := bson.D{b.scopeByApps(p.AppIDs)}

	if p.Endpoint != "" {
		filter = append(filter, bson.E{Key: "endpoint", Value: p.Endpoint})
	}
	if tr := b.buildTimeRange(p.Start, p.End); tr != nil {
		filter = append(filter, bson.E{Key: "timestamp", Value: tr})
	}

	return filter
}

// BuildEventFilter returns the filter document for a GitHub event query.
func (b Builder) BuildEventFilter(p EventParams) bson.D {
	filter := bson.D{{Key: "teamId", Value: p.TeamID}}

	if p.Event != "" {
		filter = append(filter, bson.E{Key: "event", Value: p.Event})
	}
	if p.Repository != "" {
		filter = append(filter, bson.E{Key: "repository", Value: p.Repository})
	}
	if p.Processed != nil {
		filter = append(filter, bson.E{Key: "processed", Value: *p.Processed})
	}
	if tr := b.buildTimeRange(p.Start, p.End); tr != nil {
		filter = append(filter, bson.E{Key: "timestamp", Value: tr})
	}

	return filter
}

// scopeByApps pins a filter to the caller's visible apps. A single-element
// scope uses direct equality, which Mongo plans more efficiently than $in.
func (b Builder) scopeByApps(appIDs []string) bson.E {
	if len(appIDs) == 1 {
		return bson.E{Key: "appId", Value: appIDs[0]}
	}
	return bson.E{Key: "appId", Value: bson.D{{Key: "$in", Value: appIDs}}}
}

func (b Builder) buildTimeRange(start, end time.Time) bson.D {
	var rng bson.D
	if !start.IsZero() {
		rng = append(rng, bson.E{Key: "$gte", Value: start})
	}
	if !end.IsZero() {
		rng = append(rng, bson.E{Key: "$lte", Value: end})
	}
	return rng
}
