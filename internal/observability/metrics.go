// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the caching layer. Collectors are plain injected values, not globals:
// tests and embedders build as many isolated instances as they need.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"promptliano-client/internal/client"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/querycache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the caching layer. It satisfies
// the metrics interfaces of the store, the invalidation engine and the API
// transport.
var (
	_ querycache.Metrics   = (*Collector)(nil)
	_ invalidation.Metrics = (*Collector)(nil)
	_ client.Metrics       = (*Collector)(nil)
)

type Collector struct {
	registry *prometheus.Registry

	// Cache metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheStaleHits prometheus.Counter
	cacheSets      prometheus.Counter
	cacheEvicted   prometheus.Counter

	// Invalidation metrics
	invalidationRuns    *prometheus.CounterVec
	invalidationTargets *prometheus.HistogramVec

	// Transport metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of fresh cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		cacheStaleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stale_hits_total",
			Help:      "Total number of cache hits on stale entries",
		}),
		cacheSets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sets_total",
			Help:      "Total number of cache writes",
		}),
		cacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evicted_total",
			Help:      "Total number of cache entries evicted",
		}),
		invalidationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidation_runs_total",
			Help:      "Total number of invalidation runs",
		}, []string{"entity", "operation"}),
		invalidationTargets: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invalidation_targets",
			Help:      "Number of cache entries touched per invalidation run",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"entity"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		c.cacheHits, c.cacheMisses, c.cacheStaleHits, c.cacheSets, c.cacheEvicted,
		c.invalidationRuns, c.invalidationTargets,
		c.httpRequests, c.httpDuration,
	)
	return c
}

// Handler exposes the registry for a /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the backing registry, for embedders that aggregate.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ============================================================================
// STORE METRICS
// ============================================================================

func (c *Collector) CacheHit()              { c.cacheHits.Inc() }
func (c *Collector) CacheMiss()             { c.cacheMisses.Inc() }
func (c *Collector) CacheStaleHit()         { c.cacheStaleHits.Inc() }
func (c *Collector) CacheSet()              { c.cacheSets.Inc() }
func (c *Collector) CacheEvicted(count int) { c.cacheEvicted.Add(float64(count)) }

// ============================================================================
// INVALIDATION METRICS
// ============================================================================

func (c *Collector) InvalidationRun(entity, operation string, targets int) {
	c.invalidationRuns.WithLabelValues(entity, operation).Inc()
	c.invalidationTargets.WithLabelValues(entity).Observe(float64(targets))
}

// ============================================================================
// TRANSPORT METRICS
// ============================================================================

func (c *Collector) RequestCompleted(method, path string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
