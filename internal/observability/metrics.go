// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	UpstreamCallLatency *prometheus.HistogramVec
	UpstreamErrors      *prometheus.CounterVec
	UpstreamRetries     *prometheus.CounterVec

	// Cache metrics
	CacheLookups     *prometheus.CounterVec
	CacheStoreErrors *prometheus.CounterVec

	// Market metrics
	FallbacksServed    *prometheus.CounterVec
	UnavailableSymbols prometheus.Counter
	WindowAdvances     *prometheus.CounterVec
	SnapshotsArchived  prometheus.Counter
	ChartStreamClients prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Wallet metrics
	DepositsByStatus *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "coin_dashboard"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		UpstreamCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Market data provider call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total number of failed provider calls by endpoint and class",
		}, []string{"endpoint", "class"}),
		UpstreamRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total number of retried provider attempts",
		}, []string{"endpoint"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by key class and result (hit, miss, stale)",
		}, []string{"class", "result"}),
		CacheStoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "store_errors_total",
			Help:      "Cache store errors by operation",
		}, []string{"operation"}),

		FallbacksServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fallbacks_served_total",
			Help:      "Degraded responses served by kind",
		}, []string{"kind"}),
		UnavailableSymbols: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "unavailable_symbols_total",
			Help:      "Total number of requested symbols missing from provider responses",
		}),
		WindowAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "window_advances_total",
			Help:      "Rolling window advances by backing store",
		}, []string{"store"}),
		SnapshotsArchived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "snapshots_archived_total",
			Help:      "Total number of price snapshots written to the archive",
		}),
		ChartStreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "chart_stream_clients",
			Help:      "Number of connected chart stream websocket clients",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		DepositsByStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "deposit_transitions_total",
			Help:      "Deposit transactions by resulting status",
		}, []string{"status"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// KeyClass reduces a cache key to its class, the part before the first colon.
func KeyClass(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// RecordUpstreamCall records provider call latency.
func RecordUpstreamCall(endpoint string, seconds float64) {
	DefaultMetrics.UpstreamCallLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordUpstreamError records a failed provider call.
func RecordUpstreamError(endpoint, class string) {
	DefaultMetrics.UpstreamErrors.WithLabelValues(endpoint, class).Inc()
}

// RecordUpstreamRetry records a retried attempt.
func RecordUpstreamRetry(endpoint string) {
	DefaultMetrics.UpstreamRetries.WithLabelValues(endpoint).Inc()
}

// RecordCacheLookup records a cache lookup result for key.
func RecordCacheLookup(key, result string) {
	DefaultMetrics.CacheLookups.WithLabelValues(KeyClass(key), result).Inc()
}

// RecordCacheStoreError records a failing cache store operation.
func RecordCacheStoreError(operation string) {
	DefaultMetrics.CacheStoreErrors.WithLabelValues(operation).Inc()
}

// RecordFallback records a degraded response.
func RecordFallback(kind string) {
	DefaultMetrics.FallbacksServed.WithLabelValues(kind).Inc()
}

// RecordUnavailableSymbols adds n missing symbols.
func RecordUnavailableSymbols(n int) {
	DefaultMetrics.UnavailableSymbols.Add(float64(n))
}

// RecordWindowAdvance records a rolling window advance.
func RecordWindowAdvance(store string) {
	DefaultMetrics.WindowAdvances.WithLabelValues(store).Inc()
}

// RecordSnapshotsArchived adds n archived snapshots.
func RecordSnapshotsArchived(n int) {
	DefaultMetrics.SnapshotsArchived.Add(float64(n))
}

// ChartStreamConnected adjusts the stream client gauge by delta.
func ChartStreamConnected(delta int) {
	DefaultMetrics.ChartStreamClients.Add(float64(delta))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDeposit records a deposit reaching status.
func RecordDeposit(status string) {
	DefaultMetrics.DepositsByStatus.WithLabelValues(status).Inc()
}
