package cache

import (
	"context"
	"log/slog"
	"time"

	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// SummaryCache holds computed month summaries per owner. Entries for an
// owner are dropped whenever that owner's ledger changes.
type SummaryCache struct {
	lru *LRUCache[core.MonthSummary]
}

func NewSummaryCache(maxSize int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{lru: NewLRUCache[core.MonthSummary](maxSize, ttl)}
}

func summaryKey(ownerID string, month core.YearMonth) string {
	return ownerPrefix(ownerID) + month.String()
}

// NUL cannot appear in an owner id coming from a header, so one owner's
// prefix never matches another's.
func ownerPrefix(ownerID string) string {
	return ownerID + "\x00"
}

func (s *SummaryCache) Get(ownerID string, month core.YearMonth) (core.MonthSummary, bool) {
	return s.lru.Get(summaryKey(ownerID, month))
}

func (s *SummaryCache) Set(summary core.MonthSummary) {
	s.lru.Set(summaryKey(summary.OwnerID, summary.Month), summary)
}

// Invalidate drops one month for an owner.
func (s *SummaryCache) Invalidate(ownerID string, month core.YearMonth) {
	s.lru.Delete(summaryKey(ownerID, month))
}

// InvalidateOwner drops every cached month for an owner.
func (s *SummaryCache) InvalidateOwner(ownerID string) int {
	return s.lru.DeletePrefix(ownerPrefix(ownerID))
}

func (s *SummaryCache) Size() int {
	return s.lru.Size()
}

func (s *SummaryCache) CleanExpired() int {
	return s.lru.CleanExpired()
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *slog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		logger:      slog.Default().With(applog.FieldComponent, applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			totalCleaned := 0
			for _, cache := range m.caches {
				totalCleaned += cache.CleanExpired()
			}
			if totalCleaned > 0 {
				m.logger.LogAttrs(context.Background(), slog.LevelDebug, "Expired cache entries removed",
					slog.Int("removed", totalCleaned))
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	m.started = false
	close(m.stopCleanup)
	<-m.cleanupDone
}
