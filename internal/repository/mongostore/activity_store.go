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

// ActivityStore is the MongoDB implementation of repository.ActivityRepository.
type ActivityStore struct {
	coll *mongo.Collection
}

// NewActivityStore creates an ActivityStore on the "activities" collection of db.
func NewActivityStore(db *mongo.Database) *ActivityStore {
	return &ActivityStore{coll: db.Collection("activities")}
}

func (s *ActivityStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

func (s *ActivityStore) CreateActivity(ctx context.Context, activity *models.Activity) error {
	activity.CreatedAt = activity.CreatedAt.UTC()
	if _, err := s.coll.InsertOne(ctx, activity); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) CountSince(ctx context.Context, start time.Time) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": start.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

func (s *ActivityStore) CountByType(ctx context.Context, start time.Time) ([]models.GroupCount, error) {
	rows, err := aggregateGroupCounts(ctx, s.coll, countByTypePipeline(start))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activities by type: %w", err)
	}
	return rows, nil
}

func (s *ActivityStore) RecentPublic(ctx context.Context, limit int) ([]models.Activity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.M{"isPublic": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activities: %w", err)
	}
	defer cursor.Close(ctx)

	var activities []models.Activity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode recent activities: %w", err)
	}
	return activities, nil
}

func (s *ActivityStore) TopSearchTerms(ctx context.Context, start time.Time, limit int) ([]models.GroupCount, error) {
	rows, err := aggregateGroupCounts(ctx, s.coll, topSearchTermsPipeline(start, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate search terms: %w", err)
	}
	return rows, nil
}

var _ repository.ActivityRepository = (*ActivityStore)(nil)
