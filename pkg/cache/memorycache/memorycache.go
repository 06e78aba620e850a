package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asakaida/catalogattr/pkg/cache"
)

// entryOverhead approximates the bookkeeping bytes of one entry
const entryOverhead = 100

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	size      int64
}

// Cache is an in-process LRU cache with TTL and an approximate memory limit.
type Cache[V any] struct {
	mu sync.Mutex

	items     map[string]*list.Element
	evictList *list.List // front = most recently used

	maxSize     int64
	ttl         time.Duration
	sizeOf      func(V) int64
	currentSize int64

	metrics *cache.Metrics

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ cache.Cache[int] = (*Cache[int])(nil)

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes is the approximate memory budget. Least recently used
	// entries are evicted once it is exceeded.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a non-positive ttl.
	DefaultTTL time.Duration

	// CleanupInterval enables a background sweep of expired entries.
	// Zero disables the sweep; expired entries are then dropped on access.
	CleanupInterval time.Duration

	// EnableMetrics enables collection of cache metrics.
	EnableMetrics bool
}

// New creates a memory cache. sizeOf estimates the payload size of a value
// and may be nil, in which case only the key and fixed overhead are counted.
func New[V any](config *Config, sizeOf func(V) int64) *Cache[V] {
	c := &Cache[V]{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxSize:   config.MaxSizeBytes,
		ttl:       config.DefaultTTL,
		sizeOf:    sizeOf,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	if config.EnableMetrics {
		c.metrics = &cache.Metrics{}
	}

	if config.CleanupInterval > 0 {
		go c.sweepLoop(config.CleanupInterval)
	} else {
		close(c.done)
	}

	return c
}

// Get retrieves a value from cache.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.count(func(m *cache.Metrics) { m.Misses++ })
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.count(func(m *cache.Metrics) { m.Misses++; m.KeysExpired++ })
		return zero, false
	}

	c.evictList.MoveToFront(elem)
	c.count(func(m *cache.Metrics) { m.Hits++ })
	return ent.value, true
}

// Set stores a value in cache with the specified TTL.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	size := int64(entryOverhead + len(key))
	if c.sizeOf != nil {
		size += c.sizeOf(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[V])
		c.currentSize += size - ent.size
		ent.value = value
		ent.expiresAt = expiresAt
		ent.size = size
		c.evictList.MoveToFront(elem)
	} else {
		c.items[key] = c.evictList.PushFront(&entry[V]{
			key:       key,
			value:     value,
			expiresAt: expiresAt,
			size:      size,
		})
		c.currentSize += size
		c.count(func(m *cache.Metrics) { m.KeysAdded++ })
	}

	for c.currentSize > c.maxSize && c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
		c.count(func(m *cache.Metrics) { m.KeysEvicted++ })
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache[V]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
	return nil
}

// Close stops the background sweep, if any, and waits for it to exit.
func (c *Cache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	<-c.done
	return nil
}

// Metrics returns cache statistics.
func (c *Cache[V]) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := cache.Metrics{}
	if c.metrics != nil {
		snapshot = *c.metrics
	}
	snapshot.Entries = c.evictList.Len()
	snapshot.SizeBytes = c.currentSize
	return &snapshot
}

// Len returns the current number of items in cache.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Size returns the current total size in bytes.
func (c *Cache[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// sweep drops every entry that expired before now
func (c *Cache[V]) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.evictList.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeElement(elem)
			c.count(func(m *cache.Metrics) { m.KeysExpired++ })
		}
		elem = prev
	}
}

// count applies fn to the metrics (must be called with lock held)
func (c *Cache[V]) count(fn func(*cache.Metrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

// removeElement removes an element from cache (must be called with lock held).
func (c *Cache[V]) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry[V])
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}
