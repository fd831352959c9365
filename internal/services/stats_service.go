package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
)

const (
	recentActivityLimit = 20
	topSearchLimit      = 5
	dailySeriesDays     = 7
)

// Periods accepted by ResolvePeriod. Anything else is reported as PeriodAll.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// ResolvePeriod returns the start of the reporting window and the period name echoed
// back in the report.
func ResolvePeriod(period string, now time.Time) (time.Time, string) {
	switch period {
	case PeriodToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), period
	case PeriodWeek:
		return now.AddDate(0, 0, -7), period
	case PeriodMonth:
		return now.AddDate(0, -1, 0), period
	case PeriodYear:
		return now.AddDate(-1, 0, 0), period
	default:
		return time.Unix(0, 0), PeriodAll
	}
}

// percentage is round(count/total*100), 0 when total is 0.
func percentage(count, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func sumCounts(rows []models.GroupCount) int64 {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	return total
}

// StatsService builds the dashboard report.
type StatsService struct {
	visitorRepo  repository.VisitorRepository
	activityRepo repository.ActivityRepository
	onlineWindow time.Duration
	now          func() time.Time
}

// NewStatsService creates and returns a new instance of StatsService.
func NewStatsService(visitorRepo repository.VisitorRepository, activityRepo repository.ActivityRepository, onlineWindow time.Duration) *StatsService {
	return &StatsService{
		visitorRepo:  visitorRepo,
		activityRepo: activityRepo,
		onlineWindow: onlineWindow,
		now:          time.Now,
	}
}

// rawStats collects the results of the concurrent queries, one field per query.
type rawStats struct {
	online          int64
	totalVisitors   int64
	totalPageViews  int64
	totalActivities int64
	devices         []models.GroupCount
	countries       []models.GroupCount
	cities          []models.GroupCount
	trafficSources  []models.GroupCount
	browsers        []models.GroupCount
	activityTypes   []models.GroupCount
	topSearches     []models.GroupCount
	sessions        models.SessionStats
	recent          []models.Activity
	daily           []models.DailyPoint
}

// GetStats runs every aggregation concurrently and combines them. The first failing
// query cancels the rest and fails the whole report.
func (s *StatsService) GetStats(ctx context.Context, period string) (*models.Stats, error) {
	now := s.now()
	start, periodName := ResolvePeriod(period, now)

	raw, err := s.gather(ctx, now, start)
	if err != nil {
		return nil, fmt.Errorf("get stats for period %s: %w", periodName, err)
	}

	stats := buildStats(raw)
	stats.Period = periodName
	stats.GeneratedAt = now
	return stats, nil
}

func (s *StatsService) gather(ctx context.Context, now, start time.Time) (*rawStats, error) {
	var raw rawStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		raw.online, err = s.visitorRepo.CountOnline(ctx, now.Add(-s.onlineWindow))
		return err
	})
	g.Go(func() (err error) {
		raw.totalVisitors, err = s.visitorRepo.CountFirstSeenSince(ctx, start)
		return err
	})
	g.Go(func() (err error) {
		raw.totalPageViews, err = s.visitorRepo.SumPageViews(ctx, start)
		return err
	})
	g.Go(func() (err error) {
		raw.devices, err = s.visitorRepo.Breakdown(ctx, repository.DeviceBreakdown, start)
		return err
	})
	g.Go(func() (err error) {
		raw.countries, err = s.visitorRepo.Breakdown(ctx, repository.CountryBreakdown, start)
		return err
	})
	g.Go(func() (err error) {
		raw.cities, err = s.visitorRepo.Breakdown(ctx, repository.CityBreakdown, start)
		return err
	})
	g.Go(func() (err error) {
		raw.trafficSources, err = s.visitorRepo.Breakdown(ctx, repository.TrafficSourceBreakdown, start)
		return err
	})
	g.Go(func() (err error) {
		raw.browsers, err = s.visitorRepo.Breakdown(ctx, repository.BrowserBreakdown, start)
		return err
	})
	g.Go(func() (err error) {
		raw.sessions, err = s.visitorRepo.SessionStats(ctx, start)
		return err
	})
	g.Go(func() (err error) {
		raw.daily, err = s.visitorRepo.DailySeries(ctx, repository.TrailingDays(now, dailySeriesDays))
		return err
	})
	g.Go(func() (err error) {
		raw.totalActivities, err = s.activityRepo.CountSince(ctx, start)
		return err
	})
	g.Go(func() (err error) {
		raw.activityTypes, err = s.activityRepo.CountByType(ctx, start)
		return err
	})
	g.Go(func() (err error) {
		raw.recent, err = s.activityRepo.RecentPublic(ctx, recentActivityLimit)
		return err
	})
	g.Go(func() (err error) {
		raw.topSearches, err = s.activityRepo.TopSearchTerms(ctx, start, topSearchLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &raw, nil
}

// buildStats is the pure post-processing step: percentages, rates and projections.
func buildStats(raw *rawStats) *models.Stats {
	stats := &models.Stats{
		Online:          raw.online,
		TotalVisitors:   raw.totalVisitors,
		TotalPageViews:  raw.totalPageViews,
		TotalActivities: raw.totalActivities,
		Devices:         buildDeviceStats(raw.devices),
		DailyData:       raw.daily,
	}
	stats.BounceRate = percentage(raw.sessions.BouncedSessions, raw.sessions.TotalSessions)
	stats.Countries = make([]models.CountryStat, 0, len(raw.countries))
	stats.Cities = make([]models.CityStat, 0, len(raw.cities))
	stats.TrafficSources = make([]models.TrafficSourceStat, 0, len(raw.trafficSources))
	stats.Browsers = make([]models.BrowserStat, 0, len(raw.browsers))
	stats.Activities = make([]models.ActivityTypeStat, 0, len(raw.activityTypes))
	stats.RecentActivities = make([]models.RecentActivity, 0, len(raw.recent))
	stats.TopSearches = make([]models.SearchTermStat, 0, len(raw.topSearches))
	if raw.sessions.TotalSessions > 0 {
		stats.AvgSessionDuration = int(math.Round(raw.sessions.AvgDuration))
	}
	if stats.DailyData == nil {
		stats.DailyData = []models.DailyPoint{}
	}

	total := sumCounts(raw.countries)
	for _, row := range raw.countries {
		stats.Countries = append(stats.Countries, models.CountryStat{Code: row.Label, Count: row.Count, Percentage: percentage(row.Count, total)})
	}
	total = sumCounts(raw.cities)
	for _, row := range raw.cities {
		stats.Cities = append(stats.Cities, models.CityStat{Name: row.Label, Count: row.Count, Percentage: percentage(row.Count, total)})
	}
	total = sumCounts(raw.trafficSources)
	for _, row := range raw.trafficSources {
		stats.TrafficSources = append(stats.TrafficSources, models.TrafficSourceStat{Source: row.Label, Count: row.Count, Percentage: percentage(row.Count, total)})
	}
	total = sumCounts(raw.browsers)
	for _, row := range raw.browsers {
		stats.Browsers = append(stats.Browsers, models.BrowserStat{Name: row.Label, Count: row.Count, Percentage: percentage(row.Count, total)})
	}
	for _, row := range raw.activityTypes {
		stats.Activities = append(stats.Activities, models.ActivityTypeStat{Type: row.Label, Count: row.Count})
	}
	for _, a := range raw.recent {
		stats.RecentActivities = append(stats.RecentActivities, models.NewRecentActivity(a))
	}
	for _, row := range raw.topSearches {
		stats.TopSearches = append(stats.TopSearches, models.SearchTermStat{Term: row.Label, Count: row.Count})
	}
	return stats
}

// buildDeviceStats keeps the three known device buckets; percentages use the total of
// all rows so unknown devices still weigh in.
func buildDeviceStats(rows []models.GroupCount) models.DeviceStats {
	var d models.DeviceStats
	for _, row := range rows {
		switch row.Label {
		case "desktop":
			d.Desktop = row.Count
		case "mobile":
			d.Mobile = row.Count
		case "tablet":
			d.Tablet = row.Count
		}
	}
	total := sumCounts(rows)
	d.DesktopPercentage = percentage(d.Desktop, total)
	d.MobilePercentage = percentage(d.Mobile, total)
	d.TabletPercentage = percentage(d.Tablet, total)
	return d
}
