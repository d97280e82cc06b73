package dataset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"salesdash/internal/infrastructure"
)

// CacheStats reports cache activity
type CacheStats struct {
	Enabled       bool      `json:"enabled"`
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Loads         int64     `json:"loads"`
	Invalidations int64     `json:"invalidations"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
	VerifiedAt    time.Time `json:"verified_at,omitempty"`
	Rows          int       `json:"rows"`
}

// Cache memoizes a Loader keyed on the source fingerprint. Concurrent
// callers that miss share a single load.
type Cache struct {
	loader         *Loader
	enabled        bool
	verifyInterval time.Duration
	now            func() time.Time
	metrics        *infrastructure.DashboardMetrics
	logger         *slog.Logger

	group singleflight.Group

	mutex         sync.RWMutex
	current       *Dataset
	generation    uint64
	verifiedAt    time.Time
	hitCount      int64
	missCount     int64
	loadCount     int64
	invalidations int64
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithVerifyInterval skips the fingerprint check for d after a successful
// verification. Zero verifies on every Get.
func WithVerifyInterval(d time.Duration) CacheOption {
	return func(c *Cache) { c.verifyInterval = d }
}

// WithCacheDisabled makes every Get load from the source
func WithCacheDisabled() CacheOption {
	return func(c *Cache) { c.enabled = false }
}

// WithCacheClock overrides the clock used for the verify interval
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithCacheMetrics records hits and misses
func WithCacheMetrics(m *infrastructure.DashboardMetrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCacheLogger sets the logger
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates a cache in front of loader
func NewCache(loader *Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		loader:  loader,
		enabled: true,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = infrastructure.WithComponent(c.logger, "dataset_cache")
	return c
}

// Get returns the current dataset, loading it when the input changed since
// the last load.
func (c *Cache) Get(ctx context.Context) (*Dataset, error) {
	if !c.enabled {
		c.record(ctx, false)
		c.mutex.RLock()
		generation := c.generation
		c.mutex.RUnlock()

		ds, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.mutex.Lock()
		c.loadCount++
		if c.generation == generation {
			c.current = ds
		}
		c.mutex.Unlock()
		return ds, nil
	}

	c.mutex.RLock()
	ds, verifiedAt := c.current, c.verifiedAt
	c.mutex.RUnlock()

	if ds != nil && c.verifyInterval > 0 && c.now().Sub(verifiedAt) < c.verifyInterval {
		c.record(ctx, true)
		return ds, nil
	}

	v, err, _ := c.group.Do("dataset", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// refresh verifies the fingerprint and reloads when it changed.
func (c *Cache) refresh(ctx context.Context) (*Dataset, error) {
	fingerprint, err := c.loader.Source().Fingerprint(ctx)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	if c.current != nil && c.current.Fingerprint == fingerprint {
		c.verifiedAt = c.now()
		ds := c.current
		c.mutex.Unlock()
		c.record(ctx, true)
		return ds, nil
	}
	previous := ""
	if c.current != nil {
		previous = c.current.Fingerprint
	}
	generation := c.generation
	c.mutex.Unlock()

	c.record(ctx, false)
	c.logger.InfoContext(ctx, "loading dataset",
		slog.String("fingerprint", fingerprint),
		slog.String("previous_fingerprint", previous))

	ds, err := c.loader.load(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	// A load that started before an Invalidate is returned to its callers
	// but never replaces the cached dataset.
	c.mutex.Lock()
	c.loadCount++
	if c.generation == generation {
		c.current = ds
		c.verifiedAt = c.now()
	}
	c.mutex.Unlock()

	return ds, nil
}

// Invalidate drops the cached dataset
func (c *Cache) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.current = nil
	c.verifiedAt = time.Time{}
	c.generation++
	c.invalidations++
}

// Reload invalidates the cache and loads the dataset again
func (c *Cache) Reload(ctx context.Context) (*Dataset, error) {
	c.group.Forget("dataset")
	c.Invalidate()
	return c.Get(ctx)
}

// Current returns the cached dataset without loading; nil when empty
func (c *Cache) Current() *Dataset {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.current
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := CacheStats{
		Enabled:       c.enabled,
		Hits:          c.hitCount,
		Misses:        c.missCount,
		Loads:         c.loadCount,
		Invalidations: c.invalidations,
		VerifiedAt:    c.verifiedAt,
	}
	if c.current != nil {
		stats.Fingerprint = c.current.Fingerprint
		stats.LoadedAt = c.current.LoadedAt
		stats.Rows = c.current.Len()
	}
	return stats
}

func (c *Cache) record(ctx context.Context, hit bool) {
	c.mutex.Lock()
	if hit {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mutex.Unlock()
	c.metrics.RecordCacheLookup(ctx, hit)
}
