// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "pasarmalam"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_runs_total",
		Help:      "Dataset import runs by result",
	}, []string{"result"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Dataset rows processed by outcome",
	}, []string{"outcome"})

	snapshotRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_runs_total",
		Help:      "Directory snapshot exports by result",
	}, []string{"result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Market cache lookups by kind and outcome",
	}, []string{"kind", "outcome"})

	openMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_markets",
		Help:      "Active markets open at the last browse evaluation",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ImportRun records the outcome of an import run.
func ImportRun(result string, imported, skipped int) {
	importRuns.WithLabelValues(result).Inc()
	importRows.WithLabelValues("imported").Add(float64(imported))
	importRows.WithLabelValues("skipped").Add(float64(skipped))
}

func SnapshotRun(result string) {
	snapshotRuns.WithLabelValues(result).Inc()
}

// CacheLookup records a hit or miss for kind ("market", "active").
func CacheLookup(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(kind, outcome).Inc()
}

func SetOpenMarkets(n int) {
	openMarkets.Set(float64(n))
}
