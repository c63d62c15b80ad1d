package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Query and mutation metrics
	queryOperationsTotal  *prometheus.CounterVec
	queryDuration         *prometheus.HistogramVec
	aggregateOperations   *prometheus.CounterVec
	mutationOperations    *prometheus.CounterVec

	// Database state metrics
	dbTablesTotal prometheus.Gauge
	dbRowsTotal   prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdandi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "verdandi_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		queryOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_query_operations_total",
				Help: "Total number of query evaluations",
			},
			[]string{"table", "status"},
		),

		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdandi_query_duration_seconds",
				Help:    "Query evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table"},
		),

		aggregateOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_aggregate_operations_total",
				Help: "Total number of aggregate evaluations",
			},
			[]string{"operation", "status"},
		),

		mutationOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_mutation_operations_total",
				Help: "Total number of row mutations",
			},
			[]string{"operation", "status"},
		),

		dbTablesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "verdandi_db_tables_total",
				Help: "Number of tables in the database",
			},
		),

		dbRowsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "verdandi_db_rows_total",
				Help: "Total number of rows across all tables",
			},
		),

		authRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdandi_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordQuery records a query evaluation
func (m *Metrics) RecordQuery(table string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.queryOperationsTotal.WithLabelValues(table, status).Inc()
	m.queryDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordAggregate records an aggregate evaluation
func (m *Metrics) RecordAggregate(operation string, success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.aggregateOperations.WithLabelValues(operation, status).Inc()
}

// RecordMutation records a row mutation
func (m *Metrics) RecordMutation(operation string, success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.mutationOperations.WithLabelValues(operation, status).Inc()
}

// UpdateDBStats updates database state gauges
func (m *Metrics) UpdateDBStats(tables, rows int) {
	m.dbTablesTotal.Set(float64(tables))
	m.dbRowsTotal.Set(float64(rows))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			hasAPIKey := apiKey != ""

			next(h).ServeHTTP(w, r)

			if rw, ok := w.(*responseWriter); ok {
				success := rw.statusCode != http.StatusUnauthorized
				if hasAPIKey {
					m.RecordAuthRequest(success)
				}
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
