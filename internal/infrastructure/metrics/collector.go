package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/catalogattr/pkg/cache"
)

// CacheStats is implemented by caches that report statistics
type CacheStats interface {
	Metrics() *cache.Metrics
}

// Collector aggregates in-process request and scope cache statistics.
type Collector struct {
	apiRequests sync.Map // method -> *uint64
	apiErrors   sync.Map // method -> *uint64
	apiCodes    sync.Map // method + " " + code -> *uint64
	apiDuration sync.Map // method -> *durationValue

	mu    sync.RWMutex
	cache CacheStats
}

type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds scope cache statistics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
	Expirations uint64
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	CodeCounts           map[string]uint64 // keyed by "method code"
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache attaches the scope cache whose statistics are reported.
func (c *Collector) SetCache(stats CacheStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = stats
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(method string) {
	atomic.AddUint64(c.counter(&c.apiRequests, method), 1)
}

// RecordError records an API error.
func (c *Collector) RecordError(method string) {
	atomic.AddUint64(c.counter(&c.apiErrors, method), 1)
}

// RecordCode records the gRPC status code a request finished with.
func (c *Collector) RecordCode(method, code string) {
	atomic.AddUint64(c.counter(&c.apiCodes, method+" "+code), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	val, _ := c.apiDuration.LoadOrStore(method, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// GetCacheMetrics returns current scope cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	c.mu.RLock()
	stats := c.cache
	c.mu.RUnlock()

	if stats == nil {
		return &CacheMetrics{}
	}

	m := stats.Metrics()
	if m == nil {
		return &CacheMetrics{}
	}

	return &CacheMetrics{
		Hits:        m.Hits,
		Misses:      m.Misses,
		HitRate:     m.HitRate(),
		KeysCurrent: int64(m.Entries),
		MemoryBytes: m.SizeBytes,
		Evictions:   m.KeysEvicted,
		Expirations: m.KeysExpired,
	}
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        loadCounters(&c.apiRequests),
		ErrorCounts:          loadCounters(&c.apiErrors),
		CodeCounts:           loadCounters(&c.apiCodes),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.apiDuration.Range(func(key, value any) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

func loadCounters(m *sync.Map) map[string]uint64 {
	out := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		out[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return out
}

func (c *Collector) counter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
