package features

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/reelpilot/strategycore/internal/domain"
)

// SnapshotCache stores the last valid feature vector per niche so expired
// tiers can fall back instead of blocking a cycle.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (domain.FeatureVector, bool)
	Set(ctx context.Context, key string, fv domain.FeatureVector, ttl time.Duration)
}

// CacheMetrics receives hit and miss counts from a metered cache.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// MeteredCache decorates a SnapshotCache with hit/miss telemetry. Type labels
// the backing store ("memory", "redis").
type MeteredCache struct {
	Next    SnapshotCache
	Type    string
	Metrics CacheMetrics
}

func (m MeteredCache) Get(ctx context.Context, key string) (domain.FeatureVector, bool) {
	fv, ok := m.Next.Get(ctx, key)
	if m.Metrics != nil {
		if ok {
			m.Metrics.RecordCacheHit(m.Type)
		} else {
			m.Metrics.RecordCacheMiss(m.Type)
		}
	}
	return fv, ok
}

func (m MeteredCache) Set(ctx context.Context, key string, fv domain.FeatureVector, ttl time.Duration) {
	m.Next.Set(ctx, key, fv, ttl)
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]cacheEntry
}

type cacheEntry struct {
	fv  domain.FeatureVector
	exp time.Time
}

// NewMemoryCache returns an in-process snapshot cache.
func NewMemoryCache() SnapshotCache {
	return &memoryCache{m: make(map[string]cacheEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) (domain.FeatureVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return domain.FeatureVector{}, false
	}
	return e.fv, true
}

func (c *memoryCache) Set(_ context.Context, key string, fv domain.FeatureVector, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{fv: fv}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// Redis adapter for multi-process deployments.
type redisCache struct{ r *redis.Client }

// NewAutoCache returns a redis-backed cache when addr is set, otherwise the
// in-memory cache.
func NewAutoCache(addr string) SnapshotCache {
	if addr != "" {
		return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewMemoryCache()
}

func (c *redisCache) Get(ctx context.Context, key string) (domain.FeatureVector, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.r.Get(ctx, key).Bytes()
	if err != nil {
		return domain.FeatureVector{}, false
	}
	var fv domain.FeatureVector
	if err := json.Unmarshal(raw, &fv); err != nil {
		return domain.FeatureVector{}, false
	}
	return fv, true
}

func (c *redisCache) Set(ctx context.Context, key string, fv domain.FeatureVector, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := json.Marshal(fv)
	if err != nil {
		return
	}
	_ = c.r.Set(ctx, key, raw, ttl).Err()
}
