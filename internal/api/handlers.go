package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	customerrors "github.com/axellelanca/sitepulse/internal/errors"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/services"
)

// SetupRoutes configures all Gin API routes and injects the services they need.
// activityEvents receives accepted activities; it is drained by the worker pool.
func SetupRoutes(router *gin.Engine, visitorService *services.VisitorService, statsService *services.StatsService,
	activityService *services.ActivityService, activityEvents chan<- models.ActivityEvent) {
	router.GET("/health", HealthCheckHandler)

	api := router.Group("/api")
	{
		api.POST("/visitors/track", TrackVisitorHandler(visitorService))
		api.GET("/visitors/track", OnlineVisitorsHandler(visitorService))
		api.GET("/stats", GetStatsHandler(statsService))
		api.POST("/activities", TrackActivityHandler(activityEvents))
		api.GET("/activities/recent", RecentActivitiesHandler(activityService))
	}
}

// HealthCheckHandler handles the /health route to verify service status.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TrackVisitorRequest is the body sent by the tracking beacon.
type TrackVisitorRequest struct {
	VisitorID   string `json:"visitorId"`
	CurrentPage string `json:"currentPage"`
	Referrer    string `json:"referrer"`
	Type        string `json:"type"`
}

// TrackVisitorHandler records a page view or heartbeat. A body that does not parse is
// treated as empty, so it ends up either ignored (bots) or rejected for the missing visitorId.
func TrackVisitorHandler(visitorService *services.VisitorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TrackVisitorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			req = TrackVisitorRequest{}
		}

		result, err := visitorService.Track(c.Request.Context(), services.TrackRequest{
			VisitorID:   req.VisitorID,
			CurrentPage: req.CurrentPage,
			Referrer:    req.Referrer,
			Type:        req.Type,
			IP:          c.ClientIP(),
			UserAgent:   c.GetHeader("User-Agent"),
		})
		if err != nil {
			if errors.Is(err, customerrors.ErrVisitorIDRequired) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": customerrors.ErrVisitorIDRequired.Error()})
				return
			}
			log.Printf("Error tracking visitor %q: %v", req.VisitorID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to track visitor"})
			return
		}

		if result.Ignored {
			c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// OnlineVisitorsHandler returns how many visitors are currently online.
func OnlineVisitorsHandler(visitorService *services.VisitorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		online, err := visitorService.OnlineCount(c.Request.Context())
		if err != nil {
			log.Printf("Error counting online visitors: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count online visitors"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": online})
	}
}

// GetStatsHandler builds the dashboard report for the requested period (all time when absent).
func GetStatsHandler(statsService *services.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := statsService.GetStats(c.Request.Context(), c.Query("period"))
		if err != nil {
			log.Printf("Error building stats: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// TrackActivityRequest is the body of POST /api/activities.
type TrackActivityRequest struct {
	Type        string                 `json:"type"`
	DisplayName string                 `json:"displayName"`
	TargetSlug  string                 `json:"targetSlug"`
	City        string                 `json:"city"`
	IsPublic    bool                   `json:"isPublic"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// TrackActivityHandler queues an activity for the worker pool. The send never blocks:
// when the buffer is full the event is dropped and the response says queued=false.
func TrackActivityHandler(activityEvents chan<- models.ActivityEvent) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TrackActivityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
			return
		}
		req.Type = strings.TrimSpace(req.Type)
		if req.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": customerrors.ErrActivityTypeRequired.Error()})
			return
		}

		event := models.ActivityEvent{
			Type:        req.Type,
			IsPublic:    req.IsPublic,
			DisplayName: req.DisplayName,
			City:        req.City,
			TargetSlug:  req.TargetSlug,
			Metadata:    req.Metadata,
			IPAddress:   c.ClientIP(),
			ReceivedAt:  time.Now(),
		}

		queued := true
		select {
		case activityEvents <- event:
		default:
			queued = false
			log.Printf("WARNING: activity channel is full, dropping %q activity", req.Type)
		}

		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": queued})
	}
}

// RecentActivitiesHandler returns the public activity feed. limit defaults to 20, max 50.
func RecentActivitiesHandler(activityService *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := services.DefaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
				return
			}
			limit = parsed
		}

		recent, err := activityService.Recent(c.Request.Context(), limit)
		if err != nil {
			log.Printf("Error loading recent activities: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get activities"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": recent})
	}
}
