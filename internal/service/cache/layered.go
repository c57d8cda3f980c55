package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: in-process LRU, L2: Redis).
type LayeredCache struct {
	mem   *TTLCache
	redis *RedisCache
	l1TTL time.Duration
}

// NewLayeredCache creates a layered cache. Values promoted from Redis live at most l1TTL in memory.
func NewLayeredCache(mem *TTLCache, redis *RedisCache, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{mem: mem, redis: redis, l1TTL: l1TTL}
}

func (lc *LayeredCache) GetBytes(key string) ([]byte, bool, error) {
	// L1: Try memory first
	if b, ok, _ := lc.mem.GetBytes(key); ok {
		return b, true, nil
	}

	// L2: Try Redis
	b, ok, err := lc.redis.GetBytes(key)
	if err != nil || !ok {
		return nil, false, err
	}

	// Store in memory for next time
	_ = lc.mem.SetBytes(key, b, lc.l1TTL)
	return b, true, nil
}

func (lc *LayeredCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	// Write-through: Redis first, then memory
	if err := lc.redis.SetBytes(key, value, ttl); err != nil {
		return err
	}
	l1 := ttl
	if lc.l1TTL > 0 && (l1 <= 0 || lc.l1TTL < l1) {
		l1 = lc.l1TTL
	}
	return lc.mem.SetBytes(key, value, l1)
}

// Close closes the Redis layer.
func (lc *LayeredCache) Close() error {
	return lc.redis.Close()
}

// Ping checks the Redis layer.
func (lc *LayeredCache) Ping(ctx context.Context) error {
	return lc.redis.Ping(ctx)
}
