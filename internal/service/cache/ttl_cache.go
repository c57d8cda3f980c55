package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	b   []byte
	exp time.Time
}

// TTLCache is an in-process LRU bounded by size. Entries expire after the
// per-call TTL or the cache-wide maxTTL, whichever comes first.
type TTLCache struct {
	lru *expirable.LRU[string, entry]
}

func NewTTLCache(size int, maxTTL time.Duration) *TTLCache {
	if size <= 0 {
		size = 1000
	}
	return &TTLCache{lru: expirable.NewLRU[string, entry](size, nil, maxTTL)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry{b: value, exp: exp})
	return nil
}

// Len reports the number of live entries.
func (c *TTLCache) Len() int { return c.lru.Len() }
