package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "dealroom"

// Metrics holds the Prometheus collectors for Redis operations.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	poolTotalConns    prometheus.Gauge
	poolIdleConns     prometheus.Gauge
	poolTimeouts      prometheus.Gauge
}

// DefaultMetrics is registered with the default Prometheus registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics registers the Redis collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"operation"}),
		operationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "operation_errors_total",
			Help:      "Total number of failed Redis operations",
		}, []string{"operation"}),
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"cache"}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}, []string{"cache"}),
		poolTotalConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "pool_total_connections",
			Help:      "Number of total connections in the pool",
		}),
		poolIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "pool_idle_connections",
			Help:      "Number of idle connections in the pool",
		}),
		poolTimeouts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "redis",
			Name:      "pool_timeouts_total",
			Help:      "Number of times a wait for a connection timed out",
		}),
	}
}

// ObserveOperation records the duration and result of a Redis operation.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheHit records a cache hit for the given cache name.
func (m *Metrics) RecordCacheHit(cacheName string) {
	m.cacheHits.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss records a cache miss for the given cache name.
func (m *Metrics) RecordCacheMiss(cacheName string) {
	m.cacheMisses.WithLabelValues(cacheName).Inc()
}

// UpdatePoolStats copies the pool statistics of client into the gauges.
func (m *Metrics) UpdatePoolStats(client *Client) {
	if client == nil {
		return
	}
	stats := client.PoolStats()
	if stats == nil {
		return
	}
	m.poolTotalConns.Set(float64(stats.TotalConns))
	m.poolIdleConns.Set(float64(stats.IdleConns))
	m.poolTimeouts.Set(float64(stats.Timeouts))
}

// StartPoolStatsCollector periodically updates pool stats until ctx is done
// or the returned function is called.
func StartPoolStatsCollector(ctx context.Context, client *Client, interval time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				DefaultMetrics.UpdatePoolStats(client)
			}
		}
	}()

	return cancel
}

// Timed starts timing an operation. Call the returned function with its result.
func Timed(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		DefaultMetrics.ObserveOperation(operation, time.Since(start), err)
	}
}
