package domain

import (
	"context"
	"time"
)

// LocationCache caches resolved country lookups keyed by the raw country
// name. Purely an optimization: a miss means resolve again, a stale hit is
// impossible because resolution is deterministic.
type LocationCache interface {
	Get(ctx context.Context, countryName string) (*Location, error)
	Set(ctx context.Context, countryName string, loc *Location, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	// Type is "memory" or "redis"
	Type string

	// Memory (LRU) settings
	LocalMaxSize int

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL applied to cached entries, seconds. Zero means no expiry for
	// memory and 24h for redis.
	TTL int
}
