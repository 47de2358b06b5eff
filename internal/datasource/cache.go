package datasource

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

// CachedProgram is a race program together with the time it was fetched.
type CachedProgram struct {
	Entries   []models.Entry `json:"entries"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Age returns how long ago the program was fetched.
func (c *CachedProgram) Age(now time.Time) time.Duration {
	return now.Sub(c.FetchedAt)
}

// ProgramCache stores fetched race programs by race key.
// Entries are retained past their freshness TTL so a caller can fall back to them.
type ProgramCache interface {
	Get(ctx context.Context, key string) (*CachedProgram, bool, error)
	Set(ctx context.Context, key string, program *CachedProgram) error
	Len(ctx context.Context) int
	Clear(ctx context.Context) error
}

// CacheStats reports cache activity since the fetcher was created
type CacheStats struct {
	Entries    int     `json:"entries"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	StaleHits  uint64  `json:"stale_hits"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// MemoryCache is an in-process ProgramCache backed by go-cache
type MemoryCache struct {
	cache     *cache.Cache
	retention time.Duration
	maxSize   int
	mu        sync.Mutex
}

// NewMemoryCache creates a memory cache that retains entries for retention.
// maxSize <= 0 means unbounded.
func NewMemoryCache(retention time.Duration, maxSize int) *MemoryCache {
	if retention <= 0 {
		retention = cache.NoExpiration
	}
	cleanup := retention
	if cleanup <= 0 || cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{
		cache:     cache.New(retention, cleanup),
		retention: retention,
		maxSize:   maxSize,
	}
}

// Get retrieves a cached program
func (m *MemoryCache) Get(_ context.Context, key string) (*CachedProgram, bool, error) {
	v, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	p, ok := v.(*CachedProgram)
	return p, ok, nil
}

// Set stores a program in cache
func (m *MemoryCache) Set(_ context.Context, key string, program *CachedProgram) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check size limit
	if m.maxSize > 0 && m.cache.ItemCount() >= m.maxSize {
		// Remove expired items first, then the oldest fetch
		m.cache.DeleteExpired()
		if m.cache.ItemCount() >= m.maxSize {
			m.evictOldest()
		}
	}

	m.cache.Set(key, program, cache.DefaultExpiration)
	return nil
}

func (m *MemoryCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, item := range m.cache.Items() {
		p, ok := item.Object.(*CachedProgram)
		if !ok {
			continue
		}
		if oldestKey == "" || p.FetchedAt.Before(oldest) {
			oldestKey, oldest = k, p.FetchedAt
		}
	}
	if oldestKey != "" {
		m.cache.Delete(oldestKey)
	}
}

// Len returns the number of retained entries
func (m *MemoryCache) Len(_ context.Context) int {
	return m.cache.ItemCount()
}

// Clear removes every entry
func (m *MemoryCache) Clear(_ context.Context) error {
	m.cache.Flush()
	return nil
}
