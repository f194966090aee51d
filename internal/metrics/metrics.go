// Package metrics provides Prometheus metrics for the BucketBoss shell.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Listing cache metrics
	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketboss_cache_hits_total",
			Help: "Total listing cache hits",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketboss_cache_misses_total",
			Help: "Total listing cache misses",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucketboss_cache_entries",
			Help: "Number of live entries in the listing cache",
		},
	)

	// Provider metrics
	providerOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bucketboss_provider_operation_duration_seconds",
			Help:    "Provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	providerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketboss_provider_operations_total",
			Help: "Total provider operations",
		},
		[]string{"operation", "status"},
	)

	// Crawl metrics
	crawlVisited = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucketboss_crawl_visited",
			Help: "Prefixes visited by the current background crawl",
		},
	)

	crawlErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketboss_crawl_errors_total",
			Help: "Total per-prefix errors during background crawls",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit records a listing cache hit.
func RecordCacheHit() {
	cacheHitsTotal.Inc()
}

// RecordCacheMiss records a listing cache miss.
func RecordCacheMiss() {
	cacheMissesTotal.Inc()
}

// SetCacheEntries sets the current live entry count.
func SetCacheEntries(count int) {
	cacheEntries.Set(float64(count))
}

// RecordProviderOp records a provider operation.
func RecordProviderOp(operation string, duration time.Duration, err error) {
	providerOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	providerOpsTotal.WithLabelValues(operation, status).Inc()
}

// SetCrawlVisited sets the visited count for the current crawl.
func SetCrawlVisited(count int) {
	crawlVisited.Set(float64(count))
}

// RecordCrawlError records a per-prefix crawl error.
func RecordCrawlError() {
	crawlErrorsTotal.Inc()
}
