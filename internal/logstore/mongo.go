package logstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/kiranshivaraju/devpulse/internal/config"
	"github.com/kiranshivaraju/devpulse/pkg/logquery"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// Collection names in the log database.
const (
	collErrorLogs       = "error_logs"
	collPerformanceLogs = "performance_logs"
	collAPIRequests     = "api_requests"
	collGitHubEvents    = "github_events"
)

// Connect opens a MongoDB client and verifies connectivity.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, nil
}

// MongoStore implements LogStore against a MongoDB database.
type MongoStore struct {
	db *mongo.Database
	qb logquery.Builder
}

// NewMongoStore creates a MongoStore over the named database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{db: client.Database(database)}
}

// EnsureIndexes creates the collection indexes. Safe to call on every startup;
// existing indexes are left alone.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collErrorLogs: {
			{Keys: bson.D{{Key: "appId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "severity", Value: 1}}},
			{Keys: bson.D{{Key: "resolved", Value: 1}}},
		},
		collPerformanceLogs: {
			{Keys: bson.D{{Key: "appId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "endpoint", Value: 1}}},
		},
		collAPIRequests: {
			{Keys: bson.D{{Key: "appId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "apiKey", Value: 1}}},
		},
		collGitHubEvents: {
			{Keys: bson.D{{Key: "teamId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "event", Value: 1}}},
			{Keys: bson.D{{Key: "repository", Value: 1}}},
			{Keys: bson.D{{Key: "processed", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Ping checks document store connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// --- Error logs ---

func (s *MongoStore) InsertErrorLog(ctx context.Context, log *models.ErrorLog) (string, error) {
	if log.ID.IsZero() {
		log.ID = bson.NewObjectID()
	}
	if _, err := s.db.Collection(collErrorLogs).InsertOne(ctx, log); err != nil {
		return "", fmt.Errorf("insert error log: %w", err)
	}
	return log.ID.Hex(), nil
}

func (s *MongoStore) ListErrorLogs(ctx context.Context, p logquery.ErrorParams, page Page) ([]*models.ErrorLog, int64, error) {
	filter := s.qb.BuildErrorFilter(p)
	logs, total, err := listDesc[models.ErrorLog](ctx, s.db.Collection(collErrorLogs), filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list error logs: %w", err)
	}
	return logs, total, nil
}

func (s *MongoStore) GetErrorLog(ctx context.Context, id string, appIDs []string) (*models.ErrorLog, error) {
	filter, err := s.scopedIDFilter(id, appIDs)
	if err != nil {
		return nil, err
	}

	var log models.ErrorLog
	err = s.db.Collection(collErrorLogs).FindOne(ctx, filter).Decode(&log)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get error log: %w", err)
	}
	return &log, nil
}

func (s *MongoStore) ResolveErrorLog(ctx context.Context, id string, appIDs []string, resolvedBy string) (*models.ErrorLog, error) {
	filter, err := s.scopedIDFilter(id, appIDs)
	if err != nil {
		return nil, err
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "resolved", Value: true},
		{Key: "resolvedAt", Value: time.Now().UTC()},
		{Key: "resolvedBy", Value: resolvedBy},
	}}}

	var log models.ErrorLog
	err = s.db.Collection(collErrorLogs).FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&log)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve error log: %w", err)
	}
	return &log, nil
}

func (s *MongoStore) ErrorStats(ctx context.Context, appIDs []string, since time.Time) (*models.ErrorStats, error) {
	filter := s.qb.BuildErrorFilter(logquery.ErrorParams{AppIDs: appIDs, Start: since})
	coll := s.db.Collection(collErrorLogs)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count error logs: %w", err)
	}

	bySeverity, err := groupCounts(ctx, coll, filter, "$severity")
	if err != nil {
		return nil, fmt.Errorf("group by severity: %w", err)
	}

	bySource, err := groupCounts(ctx, coll, filter, "$source")
	if err != nil {
		return nil, fmt.Errorf("group by source: %w", err)
	}

	byDay, err := s.errorsByDay(ctx, coll, filter)
	if err != nil {
		return nil, fmt.Errorf("group by day: %w", err)
	}

	return &models.ErrorStats{
		TotalErrors: total,
		BySeverity:  bySeverity,
		BySource:    bySource,
		ByDay:       byDay,
	}, nil
}

func (s *MongoStore) errorsByDay(ctx context.Context, coll *mongo.Collection, filter bson.D) ([]models.DayCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$timestamp"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	days := []models.DayCount{}
	if err := cursor.All(ctx, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// --- Performance logs ---

func (s *MongoStore) InsertPerformanceLog(ctx context.Context, log *models.PerformanceLog) (string, error) {
	if log.ID.IsZero() {
		log.ID = bson.NewObjectID()
	}
	if _, err := s.db.Collection(collPerformanceLogs).InsertOne(ctx, log); err != nil {
		return "", fmt.Errorf("insert performance log: %w", err)
	}
	return log.ID.Hex(), nil
}

func (s *MongoStore) ListPerformanceLogs(ctx context.Context, p logquery.PerformanceParams, page Page) ([]*models.PerformanceLog, int64, error) {
	filter := s.qb.BuildPerformanceFilter(p)
	logs, total, err := listDesc[models.PerformanceLog](ctx, s.db.Collection(collPerformanceLogs), filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list performance logs: %w", err)
	}
	return logs, total, nil
}

func (s *MongoStore) PerformanceStats(ctx context.Context, appIDs []string, since time.Time) (*models.PerformanceStats, error) {
	filter := s.qb.BuildPerformanceFilter(logquery.PerformanceParams{AppIDs: appIDs, Start: since})
	coll := s.db.Collection(collPerformanceLogs)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$endpoint"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$responseTime"}}},
			{Key: "max", Value: bson.D{{Key: "$max", Value: "$responseTime"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate performance logs: %w", err)
	}
	defer cursor.Close(ctx)

	byEndpoint := []models.EndpointStat{}
	if err := cursor.All(ctx, &byEndpoint); err != nil {
		return nil, fmt.Errorf("decode performance stats: %w", err)
	}

	stats := &models.PerformanceStats{ByEndpoint: byEndpoint}
	var weighted float64
	for _, e := range byEndpoint {
		stats.TotalSamples += e.Count
		weighted += e.AvgResponseTime * float64(e.Count)
	}
	if stats.TotalSamples > 0 {
		stats.AvgResponseTime = weighted / float64(stats.TotalSamples)
	}
	return stats, nil
}

// --- API requests ---

func (s *MongoStore) InsertAPIRequest(ctx context.Context, req *models.APIRequest) error {
	if req.ID.IsZero() {
		req.ID = bson.NewObjectID()
	}
	if _, err := s.db.Collection(collAPIRequests).InsertOne(ctx, req); err != nil {
		return fmt.Errorf("insert api request: %w", err)
	}
	return nil
}

// --- GitHub events ---

func (s *MongoStore) InsertGitHubEvent(ctx context.Context, ev *models.GitHubEvent) (string, error) {
	if ev.ID.IsZero() {
		ev.ID = bson.NewObjectID()
	}
	if _, err := s.db.Collection(collGitHubEvents).InsertOne(ctx, ev); err != nil {
		return "", fmt.Errorf("insert github event: %w", err)
	}
	return ev.ID.Hex(), nil
}

func (s *MongoStore) ListGitHubEvents(ctx context.Context, p logquery.EventParams, page Page) ([]*models.GitHubEvent, int64, error) {
	filter := s.qb.BuildEventFilter(p)
	events, total, err := listDesc[models.GitHubEvent](ctx, s.db.Collection(collGitHubEvents), filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list github events: %w", err)
	}
	return events, total, nil
}

func (s *MongoStore) GetGitHubEvent(ctx context.Context, id, teamID string) (*models.GitHubEvent, error) {
	filter, err := eventIDFilter(id, teamID)
	if err != nil {
		return nil, err
	}

	var ev models.GitHubEvent
	err = s.db.Collection(collGitHubEvents).FindOne(ctx, filter).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get github event: %w", err)
	}
	return &ev, nil
}

func (s *MongoStore) MarkEventProcessed(ctx context.Context, id, teamID string, aiSummary *string) (*models.GitHubEvent, error) {
	filter, err := eventIDFilter(id, teamID)
	if err != nil {
		return nil, err
	}

	set := bson.D{
		{Key: "processed", Value: true},
		{Key: "processedAt", Value: time.Now().UTC()},
	}
	if aiSummary != nil {
		set = append(set, bson.E{Key: "aiSummary", Value: *aiSummary})
	}

	var ev models.GitHubEvent
	err = s.db.Collection(collGitHubEvents).FindOneAndUpdate(ctx, filter,
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark event processed: %w", err)
	}
	return &ev, nil
}

func (s *MongoStore) EventStats(ctx context.Context, teamID string, since time.Time) (*models.EventStats, error) {
	filter := s.qb.BuildEventFilter(logquery.EventParams{TeamID: teamID, Start: since})
	coll := s.db.Collection(collGitHubEvents)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count github events: %w", err)
	}

	byEvent, err := groupCounts(ctx, coll, filter, "$event")
	if err != nil {
		return nil, fmt.Errorf("group by event: %w", err)
	}

	byRepo, err := groupCounts(ctx, coll, filter, "$repository")
	if err != nil {
		return nil, fmt.Errorf("group by repository: %w", err)
	}

	return &models.EventStats{
		TotalEvents: total,
		ByEvent:     byEvent,
		ByRepo:      byRepo,
	}, nil
}

func (s *MongoStore) ListIssues(ctx context.Context, teamID, state string, page Page) ([]*models.Issue, error) {
	filter := s.qb.BuildEventFilter(logquery.EventParams{TeamID: teamID, Event: "issues"})
	if state != "" {
		filter = append(filter, bson.E{Key: "payload.issue.state", Value: state})
	}

	events, _, err := listDesc[models.GitHubEvent](ctx, s.db.Collection(collGitHubEvents), filter, page)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	issues := make([]*models.Issue, 0, len(events))
	for _, ev := range events {
		if issue := IssueFromEvent(ev); issue != nil {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// IssueFromEvent projects a stored `issues` webhook payload into an Issue.
// Returns nil when the payload lacks an issue object.
func IssueFromEvent(ev *models.GitHubEvent) *models.Issue {
	raw, ok := ev.Payload["issue"].(map[string]any)
	if !ok {
		return nil
	}

	issue := &models.Issue{
		ID:         ev.ID.Hex(),
		Number:     asInt(raw["number"]),
		Title:      asString(raw["title"]),
		Body:       asString(raw["body"]),
		State:      asString(raw["state"]),
		URL:        asString(raw["html_url"]),
		Repository: ev.Repository,
		CreatedAt:  ev.Timestamp,
		AISummary:  ev.AISummary,
	}
	if user, ok := raw["user"].(map[string]any); ok {
		issue.AuthorName = asString(user["login"])
	}
	if created, err := time.Parse(time.RFC3339, asString(raw["created_at"])); err == nil {
		issue.CreatedAt = created
	}
	return issue
}

// --- helpers ---

// listDesc runs a timestamp-descending find with pagination and a matching
// total count.
func listDesc[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, page Page) ([]*T, int64, error) {
	page = page.Bounded()

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(page.Offset).
		SetLimit(page.Limit)

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	docs := []*T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// groupCounts aggregates document counts keyed by the given field expression.
func groupCounts(ctx context.Context, coll *mongo.Collection, filter bson.D, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Key] = b.Count
	}
	return counts, nil
}

// scopedIDFilter builds a filter matching one document id within the visible
// apps. Malformed ids report ErrNotFound since they cannot match anything.
func (s *MongoStore) scopedIDFilter(id string, appIDs []string) (bson.D, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}}
	if len(appIDs) == 1 {
		return append(filter, bson.E{Key: "appId", Value: appIDs[0]}), nil
	}
	return append(filter, bson.E{Key: "appId", Value: bson.D{{Key: "$in", Value: appIDs}}}), nil
}

func eventIDFilter(id, teamID string) (bson.D, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return bson.D{{Key: "_id", Value: oid}, {Key: "teamId", Value: teamID}}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
