package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registration happens once; registering a collector twice panics.
	once sync.Once

	// HTTPRequestsTotal counts finished requests.
	// route is the mux pattern, never the raw path, to keep cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// LinkClicksTotal counts successful redirects.
	LinkClicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "links_clicks_total",
			Help: "Total number of tracked link clicks.",
		},
	)

	// LinkEvictionsTotal counts links removed to keep the pool bounded.
	LinkEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "links_evictions_total",
			Help: "Total number of links evicted from the pool.",
		},
	)

	// CacheOperations counts list cache lookups.
	// backend: local, redis. result: hit, miss, stale, error.
	// stale counts pages dropped because the cache was invalidated while
	// they were read from the store.
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_cache_operations_total",
			Help: "List cache operations by backend and result.",
		},
		[]string{"backend", "result"},
	)

	// BloomRejections counts track lookups answered by the short code filter.
	BloomRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "links_bloom_rejections_total",
			Help: "Track lookups rejected by the short code filter without a database query.",
		},
	)

	// BloomFilterCodes estimates the codes held by the short code filter
	// after its last rebuild.
	BloomFilterCodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "links_bloom_filter_codes",
			Help: "Approximate number of short codes in the filter.",
		},
	)

	// BloomRebuilds counts filter rebuilds by trigger: startup, interval, miss.
	BloomRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_bloom_rebuilds_total",
			Help: "Short code filter rebuilds by trigger.",
		},
		[]string{"trigger"},
	)
)

// InitMetrics registers every collector with the default registry.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			LinkClicksTotal,
			LinkEvictionsTotal,
			CacheOperations,
			BloomRejections,
			BloomFilterCodes,
			BloomRebuilds,
		)
	})
}
