package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogattr"

// PrometheusExporter exports metrics in Prometheus format on its own registry.
type PrometheusExporter struct {
	registry *prometheus.Registry

	grpcRequests *prometheus.CounterVec
	grpcDuration *prometheus.HistogramVec
	grpcErrors   *prometheus.CounterVec
}

// NewPrometheusExporter creates an exporter. Scope cache statistics are read
// from collector at scrape time.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	cacheCounter := func(name, help string, read func(*CacheMetrics) float64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scope_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(collector.GetCacheMetrics()) })
	}
	cacheGauge := func(name, help string, read func(*CacheMetrics) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scope_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(collector.GetCacheMetrics()) })
	}

	cacheCounter("hits_total", "Total number of tenant scope cache hits",
		func(m *CacheMetrics) float64 { return float64(m.Hits) })
	cacheCounter("misses_total", "Total number of tenant scope cache misses",
		func(m *CacheMetrics) float64 { return float64(m.Misses) })
	cacheCounter("evictions_total", "Total number of scopes evicted due to the memory limit",
		func(m *CacheMetrics) float64 { return float64(m.Evictions) })
	cacheCounter("expirations_total", "Total number of scopes dropped after their TTL",
		func(m *CacheMetrics) float64 { return float64(m.Expirations) })
	cacheGauge("hit_rate", "Current scope cache hit rate (0.0 to 1.0)",
		func(m *CacheMetrics) float64 { return m.HitRate })
	cacheGauge("keys_current", "Current number of cached scopes",
		func(m *CacheMetrics) float64 { return float64(m.KeysCurrent) })
	cacheGauge("memory_bytes", "Approximate memory used by cached scopes",
		func(m *CacheMetrics) float64 { return float64(m.MemoryBytes) })

	return &PrometheusExporter{
		registry: registry,
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests by final status code",
			},
			[]string{"method", "code"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_request_duration_seconds",
				Help:      "Duration of gRPC requests in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_errors_total",
				Help:      "Total number of gRPC errors",
			},
			[]string{"method"},
		),
	}
}

// Registry returns the registry the exporter's metrics live in.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry for Prometheus scrapes.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// RecordRequest records a finished request and its status code.
func (e *PrometheusExporter) RecordRequest(method, code string) {
	e.grpcRequests.WithLabelValues(method, code).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string) {
	e.grpcErrors.WithLabelValues(method).Inc()
}
