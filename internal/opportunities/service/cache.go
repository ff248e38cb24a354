package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListCache stores rendered list pages. Invalidate makes every stored page
// unreachable at once.
type ListCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context) error
}

// RedisListCache keys pages under a generation counter so invalidation is one INCR.
type RedisListCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisListCache creates a Redis-backed list cache.
func NewRedisListCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisListCache {
	return &RedisListCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisListCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.prefix+"gen").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisListCache) pageKey(ctx context.Context, key string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", c.prefix, gen, key), nil
}

// Get returns the cached page for key, if any.
func (c *RedisListCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pageKey, err := c.pageKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	value, err := c.rdb.Get(ctx, pageKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key for the configured TTL.
func (c *RedisListCache) Set(ctx context.Context, key string, value []byte) error {
	pageKey, err := c.pageKey(ctx, key)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, pageKey, value, c.ttl).Err()
}

// Invalidate bumps the generation; old pages expire on their own.
func (c *RedisListCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, c.prefix+"gen").Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryListCache is the process-local ListCache used without Redis.
type MemoryListCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryListCache creates an in-process list cache.
func NewMemoryListCache(ttl time.Duration) *MemoryListCache {
	return &MemoryListCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Get returns the cached page for key, if any and not expired.
func (c *MemoryListCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key.
func (c *MemoryListCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Invalidate drops every entry.
func (c *MemoryListCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}
