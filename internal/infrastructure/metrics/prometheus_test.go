package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asakaida/catalogattr/pkg/cache"
)

type staticStats struct {
	m cache.Metrics
}

func (s *staticStats) Metrics() *cache.Metrics {
	m := s.m
	return &m
}

func TestCollector_GetCacheMetrics(t *testing.T) {
	collector := NewCollector()
	if got := collector.GetCacheMetrics(); got.Hits != 0 || got.KeysCurrent != 0 {
		t.Errorf("expected zero metrics without a cache, got %+v", got)
	}

	collector.SetCache(&staticStats{m: cache.Metrics{Hits: 3, Misses: 1, KeysEvicted: 2, KeysExpired: 4, Entries: 5, SizeBytes: 640}})

	got := collector.GetCacheMetrics()
	if got.Hits != 3 || got.Misses != 1 || got.Evictions != 2 || got.Expirations != 4 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.KeysCurrent != 5 || got.MemoryBytes != 640 {
		t.Errorf("unexpected gauges: %+v", got)
	}
	if got.HitRate != 0.75 {
		t.Errorf("hit rate = %v, want 0.75", got.HitRate)
	}
}

func TestPrometheusExporter_Handler(t *testing.T) {
	collector := NewCollector()
	collector.SetCache(&staticStats{m: cache.Metrics{Hits: 2, Entries: 1, SizeBytes: 116}})

	exporter := NewPrometheusExporter(collector)
	exporter.RecordRequest("/catalogattr.v1.AttributeService/Fetch", "OK")

	// A second exporter must not collide with the first
	NewPrometheusExporter(NewCollector())

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	out := string(body)

	for _, want := range []string{
		"catalogattr_scope_cache_hits_total 2",
		"catalogattr_scope_cache_keys_current 1",
		"catalogattr_scope_cache_memory_bytes 116",
		`catalogattr_grpc_requests_total{code="OK",method="/catalogattr.v1.AttributeService/Fetch"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected scrape output to contain %q", want)
		}
	}
}
