// Package metrics exposes Prometheus collectors for dataset operations and
// the HTTP API, registered on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "annotator"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeBusy     = "busy"
	OutcomeError    = "error"
)

// Import row outcomes.
const (
	RowImported = "imported"
	RowSkipped  = "skipped"
	RowFailed   = "failed"
)

// Registry owns the process collectors.
type Registry struct {
	reg  *prometheus.Registry
	Data *DataMetrics
	HTTP *HTTPMetrics
}

// NewRegistry registers Go runtime, process, data and HTTP collectors.
func NewRegistry() (*Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	data, err := NewDataMetrics(reg)
	if err != nil {
		return nil, err
	}
	httpMetrics, err := NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Registry{reg: reg, Data: data, HTTP: httpMetrics}, nil
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer is used by tests to inspect collected values.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// DataMetrics records business-layer operations. A nil *DataMetrics is
// valid and records nothing.
type DataMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	importRows *prometheus.CounterVec
}

func NewDataMetrics(reg prometheus.Registerer) (*DataMetrics, error) {
	m := &DataMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_operations_total",
			Help:      "Dataset operations by entity, operation and outcome",
		}, []string{"entity", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "data_operation_duration_seconds",
			Help:      "Time taken by dataset operations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"entity", "operation"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Bulk import rows by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.importRows} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one operation.
func (m *DataMetrics) Observe(entity, operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, operation, outcome).Inc()
	m.duration.WithLabelValues(entity, operation).Observe(took.Seconds())
}

// ImportRows adds n rows with the given outcome.
func (m *DataMetrics) ImportRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(outcome).Add(float64(n))
}

type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware records every request under its route template, so
// /api/images/:id is one series regardless of id.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
