package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/axellelanca/sitepulse/internal/models"
)

// GormActivityRepository est l'implémentation de ActivityRepository utilisant GORM.
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository crée et retourne une nouvelle instance de GormActivityRepository.
func NewActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// CreateActivity insère une nouvelle activité dans la base de données.
func (r *GormActivityRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	activity.CreatedAt = activity.CreatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *GormActivityRepository) CountSince(ctx context.Context, start time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Where("created_at >= ?", start.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

func (r *GormActivityRepository) CountByType(ctx context.Context, start time.Time) ([]models.GroupCount, error) {
	var rows []models.GroupCount
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Select("type AS label, COUNT(*) AS total").
		Where("created_at >= ?", start.UTC()).
		Group("type").
		Order("total DESC, label ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate activities by type: %w", err)
	}
	return rows, nil
}

// RecentPublic returns the latest public activities, newest first.
func (r *GormActivityRepository) RecentPublic(ctx context.Context, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	if err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent activities: %w", err)
	}
	return activities, nil
}

// TopSearchTerms groups search activities since start by metadata.query.
func (r *GormActivityRepository) TopSearchTerms(ctx context.Context, start time.Time, limit int) ([]models.GroupCount, error) {
	term := jsonTextExpr(r.db.Dialector.Name(), "metadata", "query")

	var rows []models.GroupCount
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Select(term+" AS label, COUNT(*) AS total").
		Where("type = ? AND created_at >= ?", models.ActivityTypeSearch, start.UTC()).
		Where(term + " IS NOT NULL").
		Where(term + " <> ''").
		Group("label").
		Order("total DESC, label ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate search terms: %w", err)
	}
	return rows, nil
}

// jsonTextExpr extracts a top-level string key of a JSON column in the given SQL dialect.
func jsonTextExpr(dialect, column, key string) string {
	switch dialect {
	case "postgres":
		return fmt.Sprintf("%s->>'%s'", column, key)
	case "mysql":
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, '$.%s'))", column, key)
	default:
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
	}
}
