package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds serialized resolutions keyed by DID URI. A miss is
// (nil, false, nil); errors are infrastructure failures.
type Cache interface {
	Get(ctx context.Context, didURI string) (*Resolution, bool, error)
	Set(ctx context.Context, didURI string, resolution *Resolution) error
	Invalidate(ctx context.Context, didURI string) error
}

const cacheKeyPrefix = "resolve:did:"

// DefaultCacheTTL bounds how long the public view may lag a deactivation
// or re-publish.
const DefaultCacheTTL = 5 * time.Minute

// RedisCache is the shared cache for multi-instance deployments.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, didURI string) (*Resolution, bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+didURI).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var resolution Resolution
	if err := json.Unmarshal(raw, &resolution); err != nil {
		// A corrupt entry behaves like a miss and gets overwritten.
		return nil, false, nil
	}
	return &resolution, true, nil
}

func (c *RedisCache) Set(ctx context.Context, didURI string, resolution *Resolution) error {
	raw, err := json.Marshal(resolution)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+didURI, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, didURI string) error {
	return c.client.Del(ctx, cacheKeyPrefix+didURI).Err()
}

// MemoryCache is the single-process fallback used in development and
// tests. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	resolution Resolution
	expiresAt  time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, didURI string) (*Resolution, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[didURI]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, didURI)
		return nil, false, nil
	}
	resolution := entry.resolution
	return &resolution, true, nil
}

func (c *MemoryCache) Set(_ context.Context, didURI string, resolution *Resolution) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[didURI] = memoryEntry{resolution: *resolution, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, didURI string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, didURI)
	return nil
}
