package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hiring-gateway/internal/model"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	HttpRequestSize     *prometheus.HistogramVec
	HttpResponseSize    *prometheus.HistogramVec

	// Load, backup and restore metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationRows     *prometheus.CounterVec
	RestoreRebuilds   *prometheus.CounterVec

	// Insert metrics
	InsertsTotal       *prometheus.CounterVec
	InsertRowsAccepted *prometheus.CounterVec

	// Backend health metrics
	BackendUp *prometheus.GaugeVec
}

var (
	metrics     *PrometheusMetrics
	metricsOnce sync.Once
)

// InitMetrics initializes all Prometheus metrics. Repeated calls are no-ops.
func InitMetrics() {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
}

func newMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		// HTTP request metrics
		HttpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiring_gateway_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HttpRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiring_gateway_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),
		HttpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiring_gateway_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),

		// Load, backup and restore metrics
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_operations_total",
				Help: "Total number of load, backup and restore operations",
			},
			[]string{"kind", "table", "status"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiring_gateway_operation_duration_seconds",
				Help:    "Operation duration in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind", "table"},
		),
		OperationRows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_operation_rows_total",
				Help: "Total number of rows moved by successful operations",
			},
			[]string{"kind", "table"},
		),
		RestoreRebuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_restore_rebuilds_total",
				Help: "Restores that had to drop and recreate the table",
			},
			[]string{"table"},
		),

		// Insert metrics
		InsertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_inserts_total",
				Help: "Total number of insert batches",
			},
			[]string{"table", "status"},
		),
		InsertRowsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiring_gateway_insert_rows_total",
				Help: "Total number of rows accepted by inserts",
			},
			[]string{"table"},
		),

		// Backend health metrics
		BackendUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hiring_gateway_backend_up",
				Help: "Whether the backend answered its last health check (1=up, 0=down)",
			},
			[]string{"backend"},
		),
	}
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// MetricsHandler serves the default registry
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		// Calculate metrics
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()

		if endpoint == "" {
			endpoint = "unmatched"
		}

		// Record metrics
		metrics.HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)

		// Record request size if available
		if c.Request.ContentLength > 0 {
			metrics.HttpRequestSize.WithLabelValues(method, endpoint).Observe(float64(c.Request.ContentLength))
		}

		// Record response size if available
		if c.Writer.Size() > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, endpoint).Observe(float64(c.Writer.Size()))
		}
	}
}

// OperationMetrics feeds finished journal entries into the operation metrics
type OperationMetrics struct{}

// ObserveOperation records one finished load, backup or restore
func (OperationMetrics) ObserveOperation(op *model.Operation, elapsed time.Duration) {
	if metrics == nil {
		return
	}

	kind := string(op.Kind)
	metrics.OperationsTotal.WithLabelValues(kind, op.Table, string(op.Status)).Inc()
	metrics.OperationDuration.WithLabelValues(kind, op.Table).Observe(elapsed.Seconds())

	if op.Status == model.OperationSucceeded && op.Rows > 0 {
		metrics.OperationRows.WithLabelValues(kind, op.Table).Add(float64(op.Rows))
	}
	if op.Rebuilt {
		metrics.RestoreRebuilds.WithLabelValues(op.Table).Inc()
	}
}

// RecordInsert records an insert batch outcome
func RecordInsert(table, status string, rows int) {
	if metrics == nil {
		return
	}

	metrics.InsertsTotal.WithLabelValues(table, status).Inc()
	if status == "success" && rows > 0 {
		metrics.InsertRowsAccepted.WithLabelValues(table).Add(float64(rows))
	}
}

// UpdateBackendHealth records whether a backend answered its health check
func UpdateBackendHealth(backend string, up bool) {
	if metrics == nil {
		return
	}

	upValue := 0.0
	if up {
		upValue = 1.0
	}
	metrics.BackendUp.WithLabelValues(backend).Set(upValue)
}
