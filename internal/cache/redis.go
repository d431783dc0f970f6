package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/skua/internal/domain"
)

const keyPrefix = "skua:location:"

// RedisCache implements LocationCache using Redis, sharing resolved
// lookups between pipeline hosts.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a resolved location. A miss returns (nil, nil).
func (c *RedisCache) Get(ctx context.Context, countryName string) (*domain.Location, error) {
	val, err := c.client.Get(ctx, keyPrefix+countryName).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loc domain.Location
	if err := json.Unmarshal(val, &loc); err != nil {
		return nil, fmt.Errorf("failed to decode cached location: %w", err)
	}
	return &loc, nil
}

// Set stores a resolved location with TTL.
func (c *RedisCache) Set(ctx context.Context, countryName string, loc *domain.Location, ttl time.Duration) error {
	if loc == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	val, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+countryName, val, ttl).Err()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
