package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axellelanca/sitepulse/internal/models"
)

// GormVisitorRepository est l'implémentation de VisitorRepository utilisant GORM.
// Times are stored in UTC so that SQLite's text timestamps compare chronologically.
type GormVisitorRepository struct {
	db *gorm.DB
}

// NewVisitorRepository crée et retourne une nouvelle instance de GormVisitorRepository.
func NewVisitorRepository(db *gorm.DB) *GormVisitorRepository {
	return &GormVisitorRepository{db: db}
}

// UpsertVisit inserts the visitor or updates it in a single INSERT ... ON CONFLICT statement.
// The counter is incremented by the database, so concurrent calls never lose a page view.
// firstSeen and sessionStart only come from the insert branch.
func (r *GormVisitorRepository) UpsertVisit(ctx context.Context, u models.VisitUpdate) (*models.Visitor, error) {
	at := u.At.UTC()
	inc := u.PageViewIncrement()

	visitor := models.Visitor{
		VisitorID:      u.VisitorID,
		IP:             u.IP,
		UserAgent:      u.UserAgent,
		Country:        u.Country,
		CountryName:    u.CountryName,
		City:           u.City,
		DeviceType:     u.DeviceType,
		Browser:        u.Browser,
		CurrentPage:    u.CurrentPage,
		Referrer:       u.Referrer,
		ReferrerSource: u.ReferrerSource,
		PageViews:      inc,
		Bounced:        inc <= 1,
		IsOnline:       true,
		FirstSeen:      at,
		SessionStart:   at,
		LastSeen:       at,
	}

	// SET expressions all read the pre-update row, so bounced sees the incremented count.
	updates := map[string]interface{}{
		"page_views":   gorm.Expr("visitors.page_views + ?", inc),
		"bounced":      gorm.Expr("CASE WHEN visitors.page_views + ? > 1 THEN FALSE ELSE TRUE END", inc),
		"last_seen":    at,
		"is_online":    true,
		"ip":           u.IP,
		"user_agent":   u.UserAgent,
		"country":      u.Country,
		"country_name": u.CountryName,
		"city":         u.City,
		"device_type":  u.DeviceType,
		"browser":      u.Browser,
		"current_page": u.CurrentPage,
	}
	if u.Referrer != "" {
		updates["referrer"] = u.Referrer
		updates["referrer_source"] = u.ReferrerSource
	}

	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&visitor).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert visitor %s: %w", u.VisitorID, err)
	}

	stored, err := r.GetByVisitorID(ctx, u.VisitorID)
	if err != nil {
		return nil, err
	}

	duration := int(at.Sub(stored.SessionStart).Seconds())
	if duration < 0 {
		duration = 0
	}
	if duration != stored.SessionDuration {
		if err := db.Model(&models.Visitor{}).Where("visitor_id = ?", u.VisitorID).
			Update("session_duration", duration).Error; err != nil {
			return nil, fmt.Errorf("failed to update session duration for %s: %w", u.VisitorID, err)
		}
		stored.SessionDuration = duration
	}
	return stored, nil
}

// GetByVisitorID récupère un visiteur par son identifiant client.
func (r *GormVisitorRepository) GetByVisitorID(ctx context.Context, visitorID string) (*models.Visitor, error) {
	var visitor models.Visitor
	if err := r.db.WithContext(ctx).Where("visitor_id = ?", visitorID).First(&visitor).Error; err != nil {
		return nil, fmt.Errorf("failed to load visitor %s: %w", visitorID, err)
	}
	return &visitor, nil
}

func (r *GormVisitorRepository) CountOnline(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Where("last_seen >= ?", since.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count online visitors: %w", err)
	}
	return count, nil
}

func (r *GormVisitorRepository) CountFirstSeenSince(ctx context.Context, start time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Where("first_seen >= ?", start.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count visitors: %w", err)
	}
	return count, nil
}

func (r *GormVisitorRepository) SumPageViews(ctx context.Context, start time.Time) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Select("COALESCE(SUM(page_views), 0)").
		Where("first_seen >= ?", start.UTC()).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum page views: %w", err)
	}
	return total, nil
}

// Breakdown groups visitors first seen since start by b.Column, largest groups first.
func (r *GormVisitorRepository) Breakdown(ctx context.Context, b Breakdown, start time.Time) ([]models.GroupCount, error) {
	label := fmt.Sprintf("COALESCE(NULLIF(%s, ''), ?)", b.Column)

	query := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Select(label+" AS label, COUNT(*) AS total", b.Fallback).
		Where("first_seen >= ?", start.UTC())
	if len(b.Exclude) > 0 {
		query = query.Where(label+" NOT IN ?", b.Fallback, b.Exclude)
	}
	query = query.Group("label").Order("total DESC, label ASC")
	if b.Limit > 0 {
		query = query.Limit(b.Limit)
	}

	var rows []models.GroupCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate visitors by %s: %w", b.Column, err)
	}
	return rows, nil
}

// SessionStats counts sessions, bounced sessions and the average duration in one pass.
// Any bounced value other than false, NULL included, counts as a bounce.
func (r *GormVisitorRepository) SessionStats(ctx context.Context, start time.Time) (models.SessionStats, error) {
	var stats models.SessionStats
	err := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Select("COUNT(*) AS total_sessions, " +
			"COALESCE(SUM(CASE WHEN bounced = FALSE THEN 0 ELSE 1 END), 0) AS bounced_sessions, " +
			"COALESCE(AVG(session_duration), 0) AS avg_duration").
		Where("first_seen >= ?", start.UTC()).
		Scan(&stats).Error
	if err != nil {
		return models.SessionStats{}, fmt.Errorf("failed to aggregate session stats: %w", err)
	}
	return stats, nil
}

// DailySeries counts visitors and sums their page views per day window, by first visit.
func (r *GormVisitorRepository) DailySeries(ctx context.Context, days []DayWindow) ([]models.DailyPoint, error) {
	points := make([]models.DailyPoint, 0, len(days))
	for _, day := range days {
		var row struct {
			Visitors  int64
			PageViews int64
		}
		err := r.db.WithContext(ctx).Model(&models.Visitor{}).
			Select("COUNT(*) AS visitors, COALESCE(SUM(page_views), 0) AS page_views").
			Where("first_seen >= ? AND first_seen < ?", day.Start.UTC(), day.End.UTC()).
			Scan(&row).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate visitors for %s: %w", day.Date, err)
		}
		points = append(points, models.DailyPoint{Date: day.Date, Visitors: row.Visitors, PageViews: row.PageViews})
	}
	return points, nil
}

func (r *GormVisitorRepository) MarkOffline(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Visitor{}).
		Where("is_online = ? AND last_seen < ?", true, before.UTC()).
		Update("is_online", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark visitors offline: %w", result.Error)
	}
	return result.RowsAffected, nil
}
