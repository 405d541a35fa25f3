// Package metrics exposes Prometheus collectors for the HTTP front end, the IPC server
// and the suggest engine.
//
// Labels stay low cardinality: route templates instead of raw paths, query mode
// instead of query text.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns one set of collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpReqs     *prometheus.CounterVec
	httpLat      *prometheus.HistogramVec
	httpInflight prometheus.Gauge
	httpRespSize *prometheus.HistogramVec

	ipcReqs *prometheus.CounterVec

	queries      *prometheus.CounterVec
	queryLat     *prometheus.HistogramVec
	queryHits    prometheus.Histogram
	builds       prometheus.Counter
	buildLat     prometheus.Histogram
	indexRecords prometheus.Gauge
	indexSkipped prometheus.Gauge
}

var _ suggest.Observer = (*Metrics)(nil)

// New creates and registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		}),
		httpRespSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: []float64{200, 500, 1 << 10, 2 << 10, 5 << 10, 10 << 10, 25 << 10, 50 << 10, 100 << 10},
		}, []string{"method", "path"}),
		ipcReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipc_requests_total",
			Help: "Total number of IPC requests by action and status code.",
		}, []string{"action", "status"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggest_queries_total",
			Help: "Suggest queries by mode and how they were answered.",
		}, []string{"mode", "source"}),
		queryLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "suggest_query_duration_seconds",
			Help:    "Time spent answering suggest queries.",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}, []string{"mode"}),
		queryHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggest_query_hits",
			Help:    "Number of hits returned per query.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "suggest_index_builds_total",
			Help: "Number of published index snapshots.",
		}),
		buildLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggest_index_build_duration_seconds",
			Help:    "Time spent building index snapshots.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		indexRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "suggest_index_records",
			Help: "Records in the live index snapshot.",
		}),
		indexSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "suggest_index_skipped_records",
			Help: "Records skipped while building the live snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.httpReqs, m.httpLat, m.httpInflight, m.httpRespSize,
		m.ipcReqs,
		m.queries, m.queryLat, m.queryHits,
		m.builds, m.buildLat, m.indexRecords, m.indexSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery implements suggest.Observer.
func (m *Metrics) ObserveQuery(s suggest.QueryStats) {
	source := "index"
	switch {
	case s.Cached:
		source = "cache"
	case s.Fuzzy:
		source = "fuzzy"
	}
	m.queries.WithLabelValues(s.Mode, source).Inc()
	m.queryLat.WithLabelValues(s.Mode).Observe(s.Elapsed.Seconds())
	m.queryHits.Observe(float64(s.Hits))
}

// ObserveBuild implements suggest.Observer.
func (m *Metrics) ObserveBuild(records, skipped int, elapsed time.Duration) {
	m.builds.Inc()
	m.buildLat.Observe(elapsed.Seconds())
	m.indexRecords.Set(float64(records))
	m.indexSkipped.Set(float64(skipped))
}

// ObserveIPC counts one IPC request.
func (m *Metrics) ObserveIPC(action string, status int) {
	m.ipcReqs.WithLabelValues(action, strconv.Itoa(status)).Inc()
}

// Gin measures request counts, latencies, in-flight requests and response sizes.
// The path label is the matched route, or "unmatched".
func (m *Metrics) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInflight.Inc()
		defer m.httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.httpReqs.WithLabelValues(method, path, status).Inc()
		m.httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			m.httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
