package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-finance/skua/internal/domain"
)

// LRUCache is a thread-safe LRU cache with TTL support. Used as the
// default cache when no redis is configured.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key       string
	location  domain.Location
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &LRUCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a resolved location from cache. A miss returns (nil, nil).
func (c *LRUCache) Get(ctx context.Context, countryName string) (*domain.Location, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[countryName]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	loc := entry.location
	return &loc, nil
}

// Set stores a resolved location. A zero TTL means no expiry.
func (c *LRUCache) Set(ctx context.Context, countryName string, loc *domain.Location, ttl time.Duration) error {
	if loc == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if elem, ok := c.items[countryName]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.location = *loc
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       countryName,
		location:  *loc,
		expiresAt: expiresAt,
	})
	c.items[countryName] = elem

	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}

	return nil
}

// Ping always succeeds for the in-process cache.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close releases the cache contents.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return nil
}

// Stats returns cache size and capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSize
}

func (c *LRUCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.order.Remove(elem)
}
