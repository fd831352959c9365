package repository

import (
	"context"
	"time"

	"github.com/axellelanca/sitepulse/internal/models"
)

// VisitorRepository est l'interface d'accès aux visiteurs, implémentée par GORM et par MongoDB.
type VisitorRepository interface {
	// UpsertVisit applies one page view or heartbeat atomically and returns the stored record.
	UpsertVisit(ctx context.Context, update models.VisitUpdate) (*models.Visitor, error)
	GetByVisitorID(ctx context.Context, visitorID string) (*models.Visitor, error)
	CountOnline(ctx context.Context, since time.Time) (int64, error)
	CountFirstSeenSince(ctx context.Context, start time.Time) (int64, error)
	SumPageViews(ctx context.Context, start time.Time) (int64, error)
	Breakdown(ctx context.Context, b Breakdown, start time.Time) ([]models.GroupCount, error)
	SessionStats(ctx context.Context, start time.Time) (models.SessionStats, error)
	DailySeries(ctx context.Context, days []DayWindow) ([]models.DailyPoint, error)
	// MarkOffline clears isOnline for visitors not seen since before and returns how many changed.
	MarkOffline(ctx context.Context, before time.Time) (int64, error)
}

// ActivityRepository est l'interface d'accès aux activités.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	CountSince(ctx context.Context, start time.Time) (int64, error)
	CountByType(ctx context.Context, start time.Time) ([]models.GroupCount, error)
	RecentPublic(ctx context.Context, limit int) ([]models.Activity, error)
	TopSearchTerms(ctx context.Context, start time.Time, limit int) ([]models.GroupCount, error)
}

// Breakdown describes a group-by over one visitor attribute.
// Null or empty values are counted under Fallback; labels listed in Exclude
// (compared after the fallback is applied) are dropped. Limit <= 0 means no limit.
type Breakdown struct {
	Column   string // SQL column
	Field    string // document field
	Fallback string
	Exclude  []string
	Limit    int
}

var (
	DeviceBreakdown        = Breakdown{Column: "device_type", Field: "deviceType", Fallback: "unknown"}
	CountryBreakdown       = Breakdown{Column: "country", Field: "country", Fallback: "XX", Limit: 10}
	CityBreakdown          = Breakdown{Column: "city", Field: "city", Fallback: "Unknown", Exclude: []string{"Unknown"}, Limit: 10}
	TrafficSourceBreakdown = Breakdown{Column: "referrer_source", Field: "referrerSource", Fallback: "direct"}
	BrowserBreakdown       = Breakdown{Column: "browser", Field: "browser", Fallback: "Unknown"}
)

// DayWindow is one local calendar day, [Start, End).
type DayWindow struct {
	Date  string
	Start time.Time
	End   time.Time
}

// TrailingDays returns the last n calendar days ending with the day of now, oldest first,
// in now's location.
func TrailingDays(now time.Time, n int) []DayWindow {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := make([]DayWindow, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		days = append(days, DayWindow{
			Date:  start.Format("2006-01-02"),
			Start: start,
			End:   start.AddDate(0, 0, 1),
		})
	}
	return days
}
