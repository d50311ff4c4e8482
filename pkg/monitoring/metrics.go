package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ledgerCallsTotal    *prometheus.CounterVec
	ledgerCallDuration  *prometheus.HistogramVec
	phiAccessTotal      *prometheus.CounterVec
	auditEventsTotal    *prometheus.CounterVec
	tokenizerOpsTotal   *prometheus.CounterVec
	operationsTotal     *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector backed by its own registry
func NewMetricsCollector(serviceName string) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": serviceName}

	return &MetricsCollector{
		serviceName: serviceName,
		registry:    reg,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "endpoint", "status_code"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "endpoint"}),

		ledgerCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ledger_calls_total",
			Help:        "Total number of ledger queries and invokes",
			ConstLabels: constLabels,
		}, []string{"function", "kind", "status"}),

		ledgerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ledger_call_duration_seconds",
			Help:        "Duration of ledger calls in seconds",
			Buckets:     []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			ConstLabels: constLabels,
		}, []string{"function", "kind"}),

		phiAccessTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "phi_access_total",
			Help:        "Total number of PHI access attempts",
			ConstLabels: constLabels,
		}, []string{"action", "outcome"}),

		auditEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "audit_events_total",
			Help:        "Total number of audit events handed to the sink",
			ConstLabels: constLabels,
		}, []string{"result"}),

		tokenizerOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "tokenizer_operations_total",
			Help:        "Total number of tokenize and detokenize calls",
			ConstLabels: constLabels,
		}, []string{"op", "status"}),

		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "operations_total",
			Help:        "Total number of dispatched operations",
			ConstLabels: constLabels,
		}, []string{"operation", "status"}),
	}
}

// Registry returns the registry the collector writes to
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordLedgerCall records a ledger query or invoke
func (m *MetricsCollector) RecordLedgerCall(function, kind string, success bool, duration time.Duration) {
	m.ledgerCallsTotal.WithLabelValues(function, kind, statusLabel(success)).Inc()
	m.ledgerCallDuration.WithLabelValues(function, kind).Observe(duration.Seconds())
}

// RecordPHIAccess records PHI access metrics
func (m *MetricsCollector) RecordPHIAccess(action, outcome string) {
	m.phiAccessTotal.WithLabelValues(action, outcome).Inc()
}

// RecordAuditEvent records whether an audit event reached the sink
func (m *MetricsCollector) RecordAuditEvent(success bool) {
	m.auditEventsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTokenizerOp records a tokenizer call
func (m *MetricsCollector) RecordTokenizerOp(op string, success bool) {
	m.tokenizerOpsTotal.WithLabelValues(op, statusLabel(success)).Inc()
}

// RecordOperation records a dispatched operation and the status code it ended with
func (m *MetricsCollector) RecordOperation(operation string, status int) {
	m.operationsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
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
