package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
	"github.com/axellelanca/sitepulse/internal/services"
)

const browserUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context, ip string) geo.Location {
	return geo.Location{City: "Kutaisi", Country: "Georgia", CountryCode: "GE"}
}

type brokenVisitorRepo struct {
	repository.VisitorRepository
}

func (brokenVisitorRepo) UpsertVisit(ctx context.Context, u models.VisitUpdate) (*models.Visitor, error) {
	return nil, errors.New("disk full")
}

func (brokenVisitorRepo) CountFirstSeenSince(ctx context.Context, start time.Time) (int64, error) {
	return 0, errors.New("disk full")
}

type testServer struct {
	router *gin.Engine
	events chan models.ActivityEvent
}

func newTestServer(t *testing.T, bufferSize int, wrapVisitors func(repository.VisitorRepository) repository.VisitorRepository) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Visitor{}, &models.Activity{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	var visitorRepo repository.VisitorRepository = repository.NewVisitorRepository(db)
	if wrapVisitors != nil {
		visitorRepo = wrapVisitors(visitorRepo)
	}
	activityRepo := repository.NewActivityRepository(db)

	events := make(chan models.ActivityEvent, bufferSize)
	router := gin.New()
	SetupRoutes(router,
		services.NewVisitorService(visitorRepo, staticResolver{}, 5*time.Minute),
		services.NewStatsService(visitorRepo, activityRepo, 5*time.Minute),
		services.NewActivityService(activityRepo, staticResolver{}),
		events,
	)
	return &testServer{router: router, events: events}
}

func (s *testServer) do(t *testing.T, method, path, body, userAgent string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, payload
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, 1, nil)
	code, body := srv.do(t, http.MethodGet, "/health", "", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("got %d %v, want 200 status ok", code, body)
	}
}

func TestTrackVisitor(t *testing.T) {
	srv := newTestServer(t, 1, nil)

	tests := []struct {
		name      string
		body      string
		userAgent string
		wantCode  int
		wantBody  map[string]interface{}
	}{
		{
			name:      "page view",
			body:      `{"visitorId":"v1","currentPage":"/","type":"pageview"}`,
			userAgent: browserUA,
			wantCode:  http.StatusOK,
			wantBody:  map[string]interface{}{"success": true},
		},
		{
			name:      "bot",
			body:      `{"visitorId":"v2"}`,
			userAgent: "Mozilla/5.0 (compatible; bingbot/2.0)",
			wantCode:  http.StatusOK,
			wantBody:  map[string]interface{}{"success": true, "ignored": true},
		},
		{
			name:      "missing visitor id",
			body:      `{"currentPage":"/"}`,
			userAgent: browserUA,
			wantCode:  http.StatusBadRequest,
			wantBody:  map[string]interface{}{"success": false, "error": "visitorId is required"},
		},
		{
			name:      "malformed body",
			body:      `{"visitorId":`,
			userAgent: browserUA,
			wantCode:  http.StatusBadRequest,
			wantBody:  map[string]interface{}{"success": false, "error": "visitorId is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := srv.do(t, http.MethodPost, "/api/visitors/track", tt.body, tt.userAgent)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if len(body) != len(tt.wantBody) {
				t.Errorf("body = %v, want %v", body, tt.wantBody)
			}
			for k, v := range tt.wantBody {
				if body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, body[k], v)
				}
			}
		})
	}

	code, body := srv.do(t, http.MethodGet, "/api/visitors/track", "", "")
	if code != http.StatusOK || body["online"] != float64(1) {
		t.Errorf("online = %d %v, want 200 online 1", code, body)
	}
}

func TestTrackVisitor_StoreFailure(t *testing.T) {
	srv := newTestServer(t, 1, func(r repository.VisitorRepository) repository.VisitorRepository {
		return brokenVisitorRepo{VisitorRepository: r}
	})

	code, body := srv.do(t, http.MethodPost, "/api/visitors/track", `{"visitorId":"v1"}`, browserUA)
	if code != http.StatusInternalServerError || body["error"] != "Failed to track visitor" || body["success"] != false {
		t.Errorf("got %d %v, want 500 Failed to track visitor", code, body)
	}
}

func TestGetStats(t *testing.T) {
	srv := newTestServer(t, 1, nil)
	for _, id := range []string{"a", "a", "a", "b"} {
		if code, _ := srv.do(t, http.MethodPost, "/api/visitors/track", `{"visitorId":"`+id+`"}`, browserUA); code != http.StatusOK {
			t.Fatalf("track %s: status %d", id, code)
		}
	}

	code, body := srv.do(t, http.MethodGet, "/api/stats?period=today", "", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["totalVisitors"] != float64(2) || body["totalPageViews"] != float64(4) || body["bounceRate"] != float64(50) {
		t.Errorf("totals = %v/%v/%v, want 2/4/50", body["totalVisitors"], body["totalPageViews"], body["bounceRate"])
	}
	if body["period"] != "today" {
		t.Errorf("period = %v, want today", body["period"])
	}
	devices, _ := body["devices"].(map[string]interface{})
	if devices["mobile"] != float64(2) || devices["mobilePercentage"] != float64(100) {
		t.Errorf("devices = %v", devices)
	}

	_, body = srv.do(t, http.MethodGet, "/api/stats", "", "")
	if body["period"] != "all" {
		t.Errorf("period without query = %v, want all", body["period"])
	}
}

func TestGetStats_Failure(t *testing.T) {
	srv := newTestServer(t, 1, func(r repository.VisitorRepository) repository.VisitorRepository {
		return brokenVisitorRepo{VisitorRepository: r}
	})

	code, body := srv.do(t, http.MethodGet, "/api/stats?period=week", "", "")
	if code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
	if len(body) != 1 || body["error"] != "Failed to get stats" {
		t.Errorf("body = %v, want only the error", body)
	}
}

func TestTrackActivity(t *testing.T) {
	srv := newTestServer(t, 1, nil)

	code, body := srv.do(t, http.MethodPost, "/api/activities", `{"type":"reaction","displayName":"Giorgi","targetSlug":"post-1","isPublic":true,"metadata":{"title":"Post"}}`, browserUA)
	if code != http.StatusAccepted || body["queued"] != true {
		t.Fatalf("got %d %v, want 202 queued", code, body)
	}

	select {
	case event := <-srv.events:
		if event.Type != "reaction" || event.TargetSlug != "post-1" || !event.IsPublic || event.Metadata["title"] != "Post" {
			t.Errorf("queued event = %+v", event)
		}
		if event.IPAddress == "" || event.ReceivedAt.IsZero() {
			t.Errorf("event missing request context: %+v", event)
		}
	default:
		t.Fatal("no event queued")
	}

	code, body = srv.do(t, http.MethodPost, "/api/activities", `{"displayName":"x"}`, browserUA)
	if code != http.StatusBadRequest || body["error"] != "activity type is required" {
		t.Errorf("missing type: got %d %v", code, body)
	}
}

func TestTrackActivity_FullBufferDrops(t *testing.T) {
	srv := newTestServer(t, 1, nil)

	if _, body := srv.do(t, http.MethodPost, "/api/activities", `{"type":"signup"}`, browserUA); body["queued"] != true {
		t.Fatalf("first event not queued: %v", body)
	}

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/api/activities", bytes.NewReader([]byte(`{"type":"signup"}`)))
		req.Header.Set("Content-Type", "application/json")
		srv.router.ServeHTTP(w, req)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler blocked on a full channel")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if w.Code != http.StatusAccepted || body["queued"] != false {
		t.Errorf("got %d %v, want 202 queued=false", w.Code, body)
	}
}

func TestRecentActivities(t *testing.T) {
	srv := newTestServer(t, 1, nil)

	code, body := srv.do(t, http.MethodGet, "/api/activities/recent?limit=abc", "", "")
	if code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d %v", code, body)
	}

	code, body = srv.do(t, http.MethodGet, "/api/activities/recent", "", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if list, ok := body["activities"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("activities = %v, want empty list", body["activities"])
	}
}
