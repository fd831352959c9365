package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
)

const desktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type fakeResolver struct {
	mu    sync.Mutex
	loc   geo.Location
	calls []string
}

func (f *fakeResolver) Resolve(ctx context.Context, ip string) geo.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ip)
	return f.loc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")), &gorm.Config{
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

// fixedClock lets a test move time forward between calls.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type testEnv struct {
	visitors    *VisitorService
	stats       *StatsService
	activities  *ActivityService
	visitorRepo *repository.GormVisitorRepository
	clock       *fixedClock
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db := newTestDB(t)
	visitorRepo := repository.NewVisitorRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	resolver := &fakeResolver{loc: geo.Location{City: "Tbilisi", Country: "Georgia", CountryCode: "GE"}}
	clock := &fixedClock{t: now}

	env := &testEnv{
		visitors:    NewVisitorService(visitorRepo, resolver, 5*time.Minute),
		stats:       NewStatsService(visitorRepo, activityRepo, 5*time.Minute),
		activities:  NewActivityService(activityRepo, resolver),
		visitorRepo: visitorRepo,
		clock:       clock,
	}
	env.visitors.now = clock.now
	env.stats.now = clock.now
	env.activities.now = clock.now
	return env
}
