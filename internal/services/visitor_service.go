// Package services contains the business logic layer of the analytics service.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	customerrors "github.com/axellelanca/sitepulse/internal/errors"
	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
	"github.com/axellelanca/sitepulse/internal/useragent"
)

// LocationResolver turns an IP into a location. *geo.Resolver is the production implementation.
type LocationResolver interface {
	Resolve(ctx context.Context, ip string) geo.Location
}

// TrackRequest is one beacon call: the JSON body plus what the handler read from the request.
type TrackRequest struct {
	VisitorID   string
	CurrentPage string
	Referrer    string
	Type        string
	IP          string
	UserAgent   string
}

// TrackResult tells the caller whether the call was dropped as bot traffic.
type TrackResult struct {
	Ignored bool
}

// VisitorService records page views and heartbeats.
type VisitorService struct {
	visitorRepo  repository.VisitorRepository
	resolver     LocationResolver
	onlineWindow time.Duration
	now          func() time.Time
}

// NewVisitorService creates and returns a new instance of VisitorService.
func NewVisitorService(visitorRepo repository.VisitorRepository, resolver LocationResolver, onlineWindow time.Duration) *VisitorService {
	return &VisitorService{
		visitorRepo:  visitorRepo,
		resolver:     resolver,
		onlineWindow: onlineWindow,
		now:          time.Now,
	}
}

// Track applies one visit. Bot traffic is ignored before validation so crawlers
// never produce 400s.
func (s *VisitorService) Track(ctx context.Context, req TrackRequest) (TrackResult, error) {
	if useragent.IsBot(req.UserAgent) {
		return TrackResult{Ignored: true}, nil
	}

	visitorID := strings.TrimSpace(req.VisitorID)
	if visitorID == "" {
		return TrackResult{}, customerrors.ErrVisitorIDRequired
	}

	loc := s.resolver.Resolve(ctx, req.IP)

	update := models.VisitUpdate{
		VisitorID:      visitorID,
		IP:             req.IP,
		UserAgent:      req.UserAgent,
		Country:        loc.CountryCode,
		CountryName:    loc.Country,
		City:           loc.City,
		DeviceType:     useragent.DeviceType(req.UserAgent),
		Browser:        useragent.Browser(req.UserAgent),
		CurrentPage:    req.CurrentPage,
		Referrer:       req.Referrer,
		ReferrerSource: useragent.ReferrerSource(req.Referrer),
		Type:           req.Type,
		At:             s.now(),
	}

	if _, err := s.visitorRepo.UpsertVisit(ctx, update); err != nil {
		return TrackResult{}, fmt.Errorf("track visitor: %w", err)
	}
	return TrackResult{}, nil
}

// OnlineCount returns how many visitors were seen within the online window.
func (s *VisitorService) OnlineCount(ctx context.Context) (int64, error) {
	return s.visitorRepo.CountOnline(ctx, s.now().Add(-s.onlineWindow))
}
