package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/sitepulse/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.Visitor{}, &models.Activity{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func pageView(visitorID string, at time.Time) models.VisitUpdate {
	return models.VisitUpdate{
		VisitorID:  visitorID,
		Country:    "GE",
		City:       "Tbilisi",
		DeviceType: "desktop",
		Browser:    "Chrome",
		Type:       models.VisitTypePageView,
		At:         at,
	}
}

func TestUpsertVisit_BounceAndTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitorRepository(newTestDB(t))
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	v, err := repo.UpsertVisit(ctx, pageView("A", t0))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if v.PageViews != 1 || !v.Bounced {
		t.Errorf("after first view got pageViews=%d bounced=%v, want 1 true", v.PageViews, v.Bounced)
	}

	v, err = repo.UpsertVisit(ctx, pageView("A", t0.Add(90*time.Second)))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if v.PageViews != 2 || v.Bounced {
		t.Errorf("after second view got pageViews=%d bounced=%v, want 2 false", v.PageViews, v.Bounced)
	}
	if !v.FirstSeen.Equal(t0) || !v.SessionStart.Equal(t0) {
		t.Errorf("firstSeen/sessionStart moved: %v / %v, want %v", v.FirstSeen, v.SessionStart, t0)
	}
	if v.SessionDuration != 90 {
		t.Errorf("sessionDuration = %d, want 90", v.SessionDuration)
	}

	heartbeat := pageView("A", t0.Add(2*time.Minute))
	heartbeat.Type = models.VisitTypeHeartbeat
	v, err = repo.UpsertVisit(ctx, heartbeat)
	if err != nil {
		t.Fatalf("heartbeat upsert: %v", err)
	}
	if v.PageViews != 2 || v.Bounced {
		t.Errorf("heartbeat changed counters: pageViews=%d bounced=%v", v.PageViews, v.Bounced)
	}
	if !v.LastSeen.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("lastSeen = %v, want %v", v.LastSeen, t0.Add(2*time.Minute))
	}
}

func TestUpsertVisit_FirstTouchHeartbeat(t *testing.T) {
	repo := NewVisitorRepository(newTestDB(t))
	u := pageView("B", time.Now())
	u.Type = models.VisitTypeHeartbeat

	v, err := repo.UpsertVisit(context.Background(), u)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if v.PageViews != 0 || !v.Bounced {
		t.Errorf("got pageViews=%d bounced=%v, want 0 true", v.PageViews, v.Bounced)
	}
}

func TestUpsertVisit_KeepsReferrerWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitorRepository(newTestDB(t))
	now := time.Now()

	first := pageView("C", now)
	first.Referrer = "https://www.google.com/search?q=x"
	first.ReferrerSource = "google"
	if _, err := repo.UpsertVisit(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := pageView("C", now.Add(time.Second))
	second.CurrentPage = "/pricing"
	v, err := repo.UpsertVisit(ctx, second)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if v.ReferrerSource != "google" || v.Referrer != first.Referrer {
		t.Errorf("referrer overwritten by empty value: %q (%q)", v.Referrer, v.ReferrerSource)
	}
	if v.CurrentPage != "/pricing" {
		t.Errorf("currentPage = %q, want /pricing", v.CurrentPage)
	}
}

func TestUpsertVisit_ConcurrentIncrements(t *testing.T) {
	repo := NewVisitorRepository(newTestDB(t))
	now := time.Now()

	const calls = 20
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.UpsertVisit(context.Background(), pageView("D", now)); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := repo.GetByVisitorID(context.Background(), "D")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.PageViews != calls {
		t.Errorf("pageViews = %d, want %d", v.PageViews, calls)
	}
}

func TestBreakdown_FallbackAndExclusion(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitorRepository(newTestDB(t))
	now := time.Now()

	cities := map[string]string{"v1": "Tbilisi", "v2": "Tbilisi", "v3": "Batumi", "v4": "", "v5": "Unknown"}
	for id, city := range cities {
		u := pageView(id, now)
		u.City = city
		if id == "v4" {
			u.Country = ""
		}
		if _, err := repo.UpsertVisit(ctx, u); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	rows, err := repo.Breakdown(ctx, CityBreakdown, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("city breakdown: %v", err)
	}
	want := []models.GroupCount{{Label: "Tbilisi", Count: 2}, {Label: "Batumi", Count: 1}}
	if len(rows) != len(want) {
		t.Fatalf("got %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}

	rows, err = repo.Breakdown(ctx, CountryBreakdown, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("country breakdown: %v", err)
	}
	got := map[string]int64{}
	for _, r := range rows {
		got[r.Label] = r.Count
	}
	if got["GE"] != 4 || got["XX"] != 1 {
		t.Errorf("country breakdown = %v, want GE:4 XX:1", got)
	}
}

func TestSessionStats_NullBouncedCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewVisitorRepository(db)
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := repo.UpsertVisit(ctx, pageView(id, now)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := repo.UpsertVisit(ctx, pageView("a", now.Add(30*time.Second))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Exec("UPDATE visitors SET bounced = NULL WHERE visitor_id = ?", "c").Error; err != nil {
		t.Fatalf("null bounced: %v", err)
	}

	stats, err := repo.SessionStats(ctx, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("session stats: %v", err)
	}
	if stats.TotalSessions != 3 || stats.BouncedSessions != 2 {
		t.Errorf("got %d sessions, %d bounced, want 3 and 2", stats.TotalSessions, stats.BouncedSessions)
	}
	if stats.AvgDuration != 10 {
		t.Errorf("avg duration = %v, want 10", stats.AvgDuration)
	}
}

func TestMarkOffline(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitorRepository(newTestDB(t))
	now := time.Now()

	if _, err := repo.UpsertVisit(ctx, pageView("idle", now.Add(-10*time.Minute))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertVisit(ctx, pageView("active", now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	changed, err := repo.MarkOffline(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("mark offline: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}

	idle, _ := repo.GetByVisitorID(ctx, "idle")
	active, _ := repo.GetByVisitorID(ctx, "active")
	if idle.IsOnline || !active.IsOnline {
		t.Errorf("idle online=%v active online=%v, want false true", idle.IsOnline, active.IsOnline)
	}

	online, err := repo.CountOnline(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("count online: %v", err)
	}
	if online != 1 {
		t.Errorf("online = %d, want 1", online)
	}
}

func TestDailySeries_ZeroFilled(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitorRepository(newTestDB(t))
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	if _, err := repo.UpsertVisit(ctx, pageView("today", now.Add(-time.Hour))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertVisit(ctx, pageView("twoDaysAgo", now.AddDate(0, 0, -2))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertVisit(ctx, pageView("twoDaysAgo", now.AddDate(0, 0, -2).Add(time.Minute))); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	points, err := repo.DailySeries(ctx, TrailingDays(now, 7))
	if err != nil {
		t.Fatalf("daily series: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("got %d points, want 7", len(points))
	}
	if points[0].Date != "2024-05-04" || points[6].Date != "2024-05-10" {
		t.Errorf("range = %s..%s, want 2024-05-04..2024-05-10", points[0].Date, points[6].Date)
	}
	if points[6].Visitors != 1 || points[6].PageViews != 1 {
		t.Errorf("today = %+v, want 1 visitor 1 view", points[6])
	}
	if points[4].Visitors != 1 || points[4].PageViews != 2 {
		t.Errorf("two days ago = %+v, want 1 visitor 2 views", points[4])
	}
	if points[5].Visitors != 0 || points[5].PageViews != 0 {
		t.Errorf("yesterday = %+v, want zeros", points[5])
	}
}

func TestTrailingDays(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*60*60)
	now := time.Date(2024, 3, 1, 0, 30, 0, 0, loc)

	days := TrailingDays(now, 3)
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	for i, d := range days {
		if d.Date != want[i] {
			t.Errorf("day %d = %s, want %s", i, d.Date, want[i])
		}
		if d.End.Sub(d.Start) != 24*time.Hour {
			t.Errorf("day %d spans %v", i, d.End.Sub(d.Start))
		}
	}
	if !days[2].Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("last day starts at %v, want local midnight", days[2].Start)
	}
}
