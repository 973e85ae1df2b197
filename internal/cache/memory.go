package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with TTL support. It serves as
// the shared-tier backend when no redis address is configured, and in tests.
type MemoryCache struct {
	data   sync.Map
	config Config
}

// cacheItem represents an item stored in the cache
type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a new in-memory cache with custom configuration
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	return &MemoryCache{config: config}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	value, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	item := value.(cacheItem)

	// Expired items are removed lazily on read
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.data.Delete(fullKey)
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	m.data.Store(fullKey, item)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Clear removes all values with this cache's prefix
func (m *MemoryCache) Clear(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.data.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(key.(string), m.config.Prefix) {
			m.data.Delete(key)
		}
		return true
	})
	return nil
}

// Exists checks if a key exists in the cache
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err != nil {
		if IsCacheMiss(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
