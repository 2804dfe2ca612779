package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Severity levels for error log entries.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Source identifies which half of a tenant app emitted an error.
type Source string

const (
	SourceFrontend Source = "frontend"
	SourceBackend  Source = "backend"
)

// ErrorLog is a single error event in the error_logs collection.
// AppID is a string reference to the owning app — the document store enforces
// no referential integrity; the write path stamps it from the authenticated
// app and the read path filters it through the scoped query gate.
type ErrorLog struct {
	ID         bson.ObjectID  `bson:"_id,omitempty"        json:"id"`
	AppID      string         `bson:"appId"                json:"app_id"`
	Message    string         `bson:"message"              json:"message"`
	StackTrace *string        `bson:"stackTrace,omitempty" json:"stack_trace,omitempty"`
	Source     Source         `bson:"source"               json:"source"`
	Severity   Severity       `bson:"severity"             json:"severity"`
	Metadata   map[string]any `bson:"metadata"             json:"metadata"`
	Timestamp  time.Time      `bson:"timestamp"            json:"timestamp"`
	Resolved   bool           `bson:"resolved"             json:"resolved"`
	ResolvedAt *time.Time     `bson:"resolvedAt,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy *string        `bson:"resolvedBy,omitempty" json:"resolved_by,omitempty"`
	Tags       []string       `bson:"tags"                 json:"tags"`
}

// PerformanceLog is a single timing sample in the performance_logs collection.
type PerformanceLog struct {
	ID           bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	AppID        string         `bson:"appId"         json:"app_id"`
	Endpoint     string         `bson:"endpoint"      json:"endpoint"`
	Method       string         `bson:"method"        json:"method"`
	ResponseTime float64        `bson:"responseTime"  json:"response_time"`
	StatusCode   int            `bson:"statusCode"    json:"status_code"`
	Timestamp    time.Time      `bson:"timestamp"     json:"timestamp"`
	Metadata     map[string]any `bson:"metadata"      json:"metadata"`
}

// APIRequest records one SDK call against the ingestion surface. The apiKey
// field holds only the credential prefix, never the raw key.
type APIRequest struct {
	ID           bson.ObjectID `bson:"_id,omitempty"   json:"id"`
	AppID        string    `bson:"appId"               json:"app_id"`
	APIKey       string    `bson:"apiKey"              json:"api_key"`
	Endpoint     string    `bson:"endpoint"            json:"endpoint"`
	Method       string    `bson:"method"              json:"method"`
	StatusCode   int       `bson:"statusCode"          json:"status_code"`
	ResponseTime float64   `bson:"responseTime"        json:"response_time"`
	Timestamp    time.Time `bson:"timestamp"           json:"timestamp"`
	IP           string    `bson:"ip"                  json:"ip"`
	UserAgent    *string   `bson:"userAgent,omitempty" json:"user_agent,omitempty"`
}

// ErrorStats is the output of the grouped-count aggregation over error logs.
type ErrorStats struct {
	TotalErrors int64            `json:"total_errors"`
	BySeverity  map[string]int64 `json:"by_severity"`
	BySource    map[string]int64 `json:"by_source"`
	ByDay       []DayCount       `json:"by_day"`
}

// DayCount is one bucket of a by-day grouping, keyed YYYY-MM-DD.
type DayCount struct {
	Date  string `bson:"_id"   json:"date"`
	Count int64  `bson:"count" json:"count"`
}

// PerformanceStats is the output of the timing aggregation over performance
// logs.
type PerformanceStats struct {
	TotalSamples    int64          `json:"total_samples"`
	AvgResponseTime float64        `json:"avg_response_time"`
	ByEndpoint      []EndpointStat `json:"by_endpoint"`
}

// EndpointStat is one endpoint's bucket of the performance aggregation.
type EndpointStat struct {
	Endpoint        string  `bson:"_id"   json:"endpoint"`
	Count           int64   `bson:"count" json:"count"`
	AvgResponseTime float64 `bson:"avg"   json:"avg_response_time"`
	MaxResponseTime float64 `bson:"max"   json:"max_response_time"`
}
