package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vxgate/vxgate/internal/auth"
)

const (
	// clientKeyPrefix is the Redis key prefix for client key lookups.
	clientKeyPrefix = "client:key:"
	// defaultClientKeyTTL is used when no TTL is configured.
	defaultClientKeyTTL = 5 * time.Minute
)

// ClientKeyCache maps client keys to client ids. Entries are hints: callers
// still load the client from the store and invalidate stale entries.
type ClientKeyCache interface {
	Lookup(ctx context.Context, key string) (id string, ok bool)
	Remember(ctx context.Context, key, id string) error
	Invalidate(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var (
	_ ClientKeyCache = (*Cache)(nil)
	_ ClientKeyCache = Noop{}
	_ ClientKeyCache = (*Memory)(nil)
)

// cacheKey hashes the client key so raw secrets never land in Redis.
func cacheKey(key string) string {
	return clientKeyPrefix + auth.QuickHash(key)
}

// Lookup returns the cached client id for key.
// Errors are treated as misses.
func (c *Cache) Lookup(ctx context.Context, key string) (string, bool) {
	id, err := c.client.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		// Cache miss is not an error
		return "", false
	}
	return id, id != ""
}

// Remember caches the id for key.
func (c *Cache) Remember(ctx context.Context, key, id string) error {
	return c.client.Set(ctx, cacheKey(key), id, c.ttl).Err()
}

// Invalidate removes the entry for key.
// Used when a client is deleted or swept.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	err := c.client.Del(ctx, cacheKey(key)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Noop is a ClientKeyCache that never hits. Used when Redis is not configured.
type Noop struct{}

// Lookup always misses.
func (Noop) Lookup(context.Context, string) (string, bool) { return "", false }

// Remember is a no-op.
func (Noop) Remember(context.Context, string, string) error { return nil }

// Invalidate is a no-op.
func (Noop) Invalidate(context.Context, string) error { return nil }

// Ping always succeeds.
func (Noop) Ping(context.Context) error { return nil }

// Memory is a process-local ClientKeyCache without expiry, for tests and
// single-node development.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]string)}
}

// Lookup returns the cached id for key.
func (m *Memory) Lookup(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[cacheKey(key)]
	return id, ok
}

// Remember caches id for key.
func (m *Memory) Remember(_ context.Context, key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[cacheKey(key)] = id
	return nil
}

// Invalidate removes the entry for key.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, cacheKey(key))
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
