package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
)

// VisitorStore is the MongoDB implementation of repository.VisitorRepository.
type VisitorStore struct {
	coll *mongo.Collection
}

// NewVisitorStore creates a VisitorStore on the "visitors" collection of db.
func NewVisitorStore(db *mongo.Database) *VisitorStore {
	return &VisitorStore{coll: db.Collection("visitors")}
}

// EnsureIndexes creates the unique visitorId index and the time indexes used by reports.
func (s *VisitorStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "visitorId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "firstSeen", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "lastSeen", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "isOnline", Value: 1}, {Key: "lastSeen", Value: -1}},
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create visitor indexes: %w", err)
	}
	return nil
}

// UpsertVisit applies the update as a single-document pipeline update with upsert,
// so the counter and the derived fields are computed atomically by the server.
func (s *VisitorStore) UpsertVisit(ctx context.Context, u models.VisitUpdate) (*models.Visitor, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var visitor models.Visitor
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"visitorId": u.VisitorID}, visitUpdatePipeline(u), opts).Decode(&visitor)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert visitor %s: %w", u.VisitorID, err)
	}
	return &visitor, nil
}

func (s *VisitorStore) GetByVisitorID(ctx context.Context, visitorID string) (*models.Visitor, error) {
	var visitor models.Visitor
	if err := s.coll.FindOne(ctx, bson.M{"visitorId": visitorID}).Decode(&visitor); err != nil {
		return nil, fmt.Errorf("failed to load visitor %s: %w", visitorID, err)
	}
	return &visitor, nil
}

func (s *VisitorStore) CountOnline(ctx context.Context, since time.Time) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"lastSeen": bson.M{"$gte": since.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to count online visitors: %w", err)
	}
	return count, nil
}

func (s *VisitorStore) CountFirstSeenSince(ctx context.Context, start time.Time) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"firstSeen": bson.M{"$gte": start.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors: %w", err)
	}
	return count, nil
}

func (s *VisitorStore) SumPageViews(ctx context.Context, start time.Time) (int64, error) {
	totals, err := s.windowTotals(ctx, start, time.Now().AddDate(100, 0, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to sum page views: %w", err)
	}
	return totals.PageViews, nil
}

func (s *VisitorStore) Breakdown(ctx context.Context, b repository.Breakdown, start time.Time) ([]models.GroupCount, error) {
	rows, err := aggregateGroupCounts(ctx, s.coll, breakdownPipeline(b, start))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate visitors by %s: %w", b.Field, err)
	}
	return rows, nil
}

func (s *VisitorStore) SessionStats(ctx context.Context, start time.Time) (models.SessionStats, error) {
	cursor, err := s.coll.Aggregate(ctx, sessionStatsPipeline(start))
	if err != nil {
		return models.SessionStats{}, fmt.Errorf("failed to aggregate session stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats models.SessionStats
	if cursor.Next(ctx) {
		if err := cursor.Decode(&stats); err != nil {
			return models.SessionStats{}, fmt.Errorf("failed to decode session stats: %w", err)
		}
	}
	return stats, cursor.Err()
}

func (s *VisitorStore) DailySeries(ctx context.Context, days []repository.DayWindow) ([]models.DailyPoint, error) {
	points := make([]models.DailyPoint, 0, len(days))
	for _, day := range days {
		totals, err := s.windowTotals(ctx, day.Start, day.End)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate visitors for %s: %w", day.Date, err)
		}
		points = append(points, models.DailyPoint{Date: day.Date, Visitors: totals.Visitors, PageViews: totals.PageViews})
	}
	return points, nil
}

func (s *VisitorStore) MarkOffline(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.coll.UpdateMany(ctx,
		bson.M{"isOnline": true, "lastSeen": bson.M{"$lt": before.UTC()}},
		bson.M{"$set": bson.M{"isOnline": false}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark visitors offline: %w", err)
	}
	return result.ModifiedCount, nil
}

type windowTotals struct {
	Visitors  int64 `bson:"visitors"`
	PageViews int64 `bson:"pageViews"`
}

func (s *VisitorStore) windowTotals(ctx context.Context, start, end time.Time) (windowTotals, error) {
	cursor, err := s.coll.Aggregate(ctx, windowTotalsPipeline(start, end))
	if err != nil {
		return windowTotals{}, err
	}
	defer cursor.Close(ctx)

	var totals windowTotals
	if cursor.Next(ctx) {
		if err := cursor.Decode(&totals); err != nil {
			return windowTotals{}, err
		}
	}
	return totals, cursor.Err()
}

func aggregateGroupCounts(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]models.GroupCount, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.GroupCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

var _ repository.VisitorRepository = (*VisitorStore)(nil)
