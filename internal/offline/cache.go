package offline

import (
	"context"

	"github.com/tgienger/shiush/internal/models"
)

// Storage holds named, versioned caches of responses. *db.DB implements it.
type Storage interface {
	OpenCache(ctx context.Context, name string) error
	CacheNames(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, name string) (bool, error)
	PutCacheEntries(ctx context.Context, name string, entries map[string]*models.CachedResponse) error
	MatchCache(ctx context.Context, name, key string) (*models.CachedResponse, bool, error)
	CacheKeys(ctx context.Context, name string) ([]string, error)
}

// Cache is a handle on one named cache
type Cache struct {
	storage Storage
	name    string
}

// OpenCache creates the named cache if needed and returns a handle on it
func OpenCache(ctx context.Context, storage Storage, name string) (*Cache, error) {
	if err := storage.OpenCache(ctx, name); err != nil {
		return nil, err
	}
	return &Cache{storage: storage, name: name}, nil
}

// Name returns the cache name
func (c *Cache) Name() string { return c.name }

// Put stores one response
func (c *Cache) Put(ctx context.Context, key string, resp *models.CachedResponse) error {
	return c.storage.PutCacheEntries(ctx, c.name, map[string]*models.CachedResponse{key: resp})
}

// AddAll stores every response or none
func (c *Cache) AddAll(ctx context.Context, entries map[string]*models.CachedResponse) error {
	return c.storage.PutCacheEntries(ctx, c.name, entries)
}

// Match looks up a request key
func (c *Cache) Match(ctx context.Context, key string) (*models.CachedResponse, bool, error) {
	return c.storage.MatchCache(ctx, c.name, key)
}

// Keys lists the stored request keys
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.storage.CacheKeys(ctx, c.name)
}
