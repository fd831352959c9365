package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	customerrors "github.com/axellelanca/sitepulse/internal/errors"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 50
)

// ActivityService records engagement events and serves the public feed.
type ActivityService struct {
	activityRepo repository.ActivityRepository
	resolver     LocationResolver
	now          func() time.Time
}

// NewActivityService creates and returns a new instance of ActivityService.
func NewActivityService(activityRepo repository.ActivityRepository, resolver LocationResolver) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		resolver:     resolver,
		now:          time.Now,
	}
}

// Record persists one event. The city comes from the request IP when the event has none.
func (s *ActivityService) Record(ctx context.Context, event models.ActivityEvent) (*models.Activity, error) {
	activityType := strings.TrimSpace(event.Type)
	if activityType == "" {
		return nil, customerrors.ErrActivityTypeRequired
	}

	city := strings.TrimSpace(event.City)
	if city == "" && s.resolver != nil {
		city = s.resolver.Resolve(ctx, event.IPAddress).City
	}

	createdAt := event.ReceivedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	activity := &models.Activity{
		ID:          uuid.New().String(),
		Type:        activityType,
		IsPublic:    event.IsPublic,
		DisplayName: event.DisplayName,
		City:        city,
		TargetSlug:  event.TargetSlug,
		Metadata:    event.Metadata,
		CreatedAt:   createdAt,
	}
	if err := s.activityRepo.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("record %s activity: %w", activityType, err)
	}
	return activity, nil
}

// Recent returns the newest public activities. limit is clamped to [1, MaxRecentLimit],
// and DefaultRecentLimit is used when it is not positive.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	activities, err := s.activityRepo.RecentPublic(ctx, limit)
	if err != nil {
		return nil, err
	}

	recent := make([]models.RecentActivity, 0, len(activities))
	for _, a := range activities {
		recent = append(recent, models.NewRecentActivity(a))
	}
	return recent, nil
}
