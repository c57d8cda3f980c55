package cache

import (
	"time"

	domrepo "TrendChart/internal/domain/repository"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

var (
	_ domrepo.ChartCache = (*TTLCache)(nil)
	_ domrepo.ChartCache = (*RedisCache)(nil)
	_ domrepo.ChartCache = (*LayeredCache)(nil)
)
