package sizecache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/cyberinferno/pixelflood/protocol"
)

// Memory is an in-process Cache backed by go-cache. A singleflight group
// collapses concurrent misses for the same address into one SIZE query.
type Memory struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemory creates an in-process cache.
//
// Parameters:
//   - cleanupInterval: How often expired entries are purged
//
// Returns:
//   - The new Memory cache
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// GetOrFetch implements Cache.
func (m *Memory) GetOrFetch(ctx context.Context, addr string, ttl time.Duration, fetch FetchFunc) (protocol.Vec2, error) {
	if val, found := m.cache.Get(addr); found {
		return val.(protocol.Vec2), nil
	}

	val, err, _ := m.group.Do(addr, func() (any, error) {
		// Another goroutine may have fetched while we waited on the group.
		if cached, found := m.cache.Get(addr); found {
			return cached, nil
		}

		size, err := fetch(ctx)
		if err != nil {
			return protocol.Vec2{}, err
		}

		m.cache.Set(addr, size, ttl)
		return size, nil
	})
	if err != nil {
		return protocol.Vec2{}, err
	}

	return val.(protocol.Vec2), nil
}

// Forget implements Cache.
func (m *Memory) Forget(_ context.Context, addr string) error {
	m.cache.Delete(addr)
	return nil
}
