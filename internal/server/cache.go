package server

import (
	"context"
	"time"

	"github.com/G9000/tauri-update-server/internal/metrics"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/patrickmn/go-cache"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

type cacheKey string

// the endpoint serves one repository, so one key is enough
const cacheKeyLatestRelease cacheKey = "latest"

type releaseResolveFunc func(ctx context.Context) (*update.Release, error)

type cacheEntry struct {
	value     *update.Release
	expiresAt time.Time
}

// releaseCache keeps resolved releases for a fixed TTL measured by its own clock.
// Concurrent misses may resolve more than once; the last write wins.
type releaseCache struct {
	store *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func newReleaseCache(ttl time.Duration) *releaseCache {
	return &releaseCache{
		// expiry is tracked per entry against now, not by go-cache's janitor
		store: cache.New(cache.NoExpiration, 0),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *releaseCache) getFromCache(ctx context.Context, k cacheKey) (*update.Release, bool) {
	val, ok := c.store.Get(string(k))
	if !ok {
		return nil, false
	}
	entry := val.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	stats.Record(ctx, metrics.CounterCacheHit.M(1))
	return entry.value, true
}

func (c *releaseCache) setInCache(k cacheKey, v *update.Release) {
	c.store.Set(string(k), &cacheEntry{value: v, expiresAt: c.now().Add(c.ttl)}, cache.NoExpiration)
}

// getOrResolve returns the cached release for k, resolving and storing it when
// the entry is missing or expired. Failed resolutions are not cached.
func (c *releaseCache) getOrResolve(ctx context.Context, k cacheKey, resolve releaseResolveFunc) (*update.Release, error) {
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.TagCacheKey, string(k)))
	if rel, ok := c.getFromCache(ctx, k); ok {
		return rel, nil
	}
	stats.Record(ctx, metrics.CounterCacheMiss.M(1))
	rel, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.setInCache(k, rel)
	return rel, nil
}
