// Package cache provides location-resolution caches for Skua.
package cache

import (
	"fmt"
	"time"

	"github.com/opensource-finance/skua/internal/domain"
)

// New creates a location cache based on configuration.
// "memory" returns an in-process LRU; "redis" shares resolutions between
// pipeline hosts.
func New(cfg domain.CacheConfig) (domain.LocationCache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// defaultTTL applies when a caller passes a zero TTL to a redis cache;
// resolutions are deterministic, expiry only bounds memory.
const defaultTTL = 24 * time.Hour
