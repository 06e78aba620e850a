package cache

import (
	"context"
	"time"
)

// Cache is a typed key/value cache with per-entry TTL.
type Cache[V any] interface {
	// Get returns the value and true if key is present and not expired.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores value under key. A non-positive ttl uses the cache default.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close stops background work. The cache must not be used afterwards.
	Close() error

	// Metrics returns a snapshot of cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache statistics.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64 // removed to stay under the size limit
	KeysExpired uint64 // removed because their TTL passed

	Entries   int
	SizeBytes int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
