package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/repository"
)

// PresenceMonitor periodically marks idle visitors offline and purges expired geo cache entries.
type PresenceMonitor struct {
	visitorRepo  repository.VisitorRepository
	cache        geo.Cache
	interval     time.Duration
	onlineWindow time.Duration
	now          func() time.Time

	mu        sync.Mutex
	lastSweep SweepResult
}

// SweepResult reports what a single sweep changed.
type SweepResult struct {
	At             time.Time
	MarkedOffline  int64
	CacheEvictions int
}

// NewPresenceMonitor creates a monitor. cache may be nil when there is nothing to purge.
func NewPresenceMonitor(visitorRepo repository.VisitorRepository, cache geo.Cache, interval, onlineWindow time.Duration) *PresenceMonitor {
	return &PresenceMonitor{
		visitorRepo:  visitorRepo,
		cache:        cache,
		interval:     interval,
		onlineWindow: onlineWindow,
		now:          time.Now,
	}
}

// Start runs a sweep immediately, then once per interval until ctx is cancelled.
func (m *PresenceMonitor) Start(ctx context.Context) {
	log.Printf("[MONITOR] Starting presence monitor with interval of %v...", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[MONITOR] Presence monitor stopped.")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep flips isOnline off for visitors idle past the online window and sweeps the cache.
func (m *PresenceMonitor) Sweep(ctx context.Context) SweepResult {
	now := m.now()
	result := SweepResult{At: now}

	marked, err := m.visitorRepo.MarkOffline(ctx, now.Add(-m.onlineWindow))
	if err != nil {
		log.Printf("[MONITOR] ERROR marking idle visitors offline: %v", err)
	} else {
		result.MarkedOffline = marked
	}

	if m.cache != nil {
		result.CacheEvictions = m.cache.Sweep()
	}

	if result.MarkedOffline > 0 || result.CacheEvictions > 0 {
		log.Printf("[MONITOR] %d visitor(s) went offline, %d expired geo entr(ies) purged.",
			result.MarkedOffline, result.CacheEvictions)
	}

	m.mu.Lock()
	m.lastSweep = result
	m.mu.Unlock()
	return result
}

// LastSweep returns the result of the most recent sweep.
func (m *PresenceMonitor) LastSweep() SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSweep
}
