// Package sizecache caches the canvas size reported by a Pixelflut server,
// keyed by server address. Repeat runs against the same server skip the SIZE
// round trip; the Redis backend shares the entry across a swarm of client
// processes painting the same canvas. Entries carry a TTL because a server
// restart may change the canvas size.
package sizecache

import (
	"context"
	"time"

	"github.com/cyberinferno/pixelflood/protocol"
)

// FetchFunc queries the server for its canvas size on a cache miss.
type FetchFunc func(ctx context.Context) (protocol.Vec2, error)

// Cache stores canvas sizes by server address and fetches through on a miss.
// Implementations are safe for concurrent use.
type Cache interface {
	// GetOrFetch returns the cached size for addr, or runs fetch, stores the
	// result with the given TTL and returns it. Concurrent misses for the
	// same addr should collapse into a single fetch where the backend can
	// arrange it.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: The server's "host:port", used as the cache key
	//   - ttl: How long the fetched size stays valid
	//   - fetch: Queries the server when the size is not cached
	//
	// Returns:
	//   - The cached or freshly fetched canvas size
	//   - An error if the fetch or the backend fails
	GetOrFetch(ctx context.Context, addr string, ttl time.Duration, fetch FetchFunc) (protocol.Vec2, error)

	// Forget drops the cached size for addr, if any.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: The server's "host:port"
	//
	// Returns:
	//   - An error if the backend fails; a missing entry is not an error
	Forget(ctx context.Context, addr string) error
}
