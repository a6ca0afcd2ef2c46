package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Workflow metrics
	WorkflowCreatesTotal       *prometheus.CounterVec
	WorkflowActionsTotal       *prometheus.CounterVec
	WorkflowCompletionsTotal   *prometheus.CounterVec
	WorkflowActive             *prometheus.GaugeVec
	TemplateValidationFailures *prometheus.CounterVec

	// Idempotency metrics
	IdempotencyHitsTotal prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenlight_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenlight_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenlight_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenlight_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Workflows
		WorkflowCreatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenlight_workflow_creates_total",
			Help: "Total number of workflows created.",
		}, []string{"template_id", "content_type"}),
		WorkflowActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenlight_workflow_actions_total",
			Help: "Total number of approval actions recorded.",
		}, []string{"action", "result"}),
		WorkflowCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenlight_workflow_completions_total",
			Help: "Total number of workflows reaching a terminal status.",
		}, []string{"final_status"}),
		WorkflowActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "greenlight_workflow_active",
			Help: "Number of workflows not yet in a terminal status.",
		}, []string{"content_type"}),
		TemplateValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenlight_template_validation_failures_total",
			Help: "Total number of rejected template definitions.",
		}, []string{"detail_code"}),

		// Idempotency
		IdempotencyHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenlight_idempotency_hits_total",
			Help: "Total number of requests replayed from the idempotency store.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Workflows
		m.WorkflowCreatesTotal,
		m.WorkflowActionsTotal,
		m.WorkflowCompletionsTotal,
		m.WorkflowActive,
		m.TemplateValidationFailures,
		// Idempotency
		m.IdempotencyHitsTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordWorkflowCreate records a workflow creation.
func (m *Metrics) RecordWorkflowCreate(templateID, contentType string) {
	m.WorkflowCreatesTotal.WithLabelValues(templateID, contentType).Inc()
	m.WorkflowActive.WithLabelValues(contentType).Inc()
}

// RecordWorkflowAction records an approval action attempt and its outcome.
// result is "accepted" or the error code that rejected it.
func (m *Metrics) RecordWorkflowAction(action, result string) {
	m.WorkflowActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordWorkflowCompletion records a workflow reaching a terminal status.
func (m *Metrics) RecordWorkflowCompletion(contentType, finalStatus string) {
	m.WorkflowCompletionsTotal.WithLabelValues(finalStatus).Inc()
	m.WorkflowActive.WithLabelValues(contentType).Dec()
}

// RecordTemplateValidationFailure records one rejected template rule.
func (m *Metrics) RecordTemplateValidationFailure(detailCode string) {
	m.TemplateValidationFailures.WithLabelValues(detailCode).Inc()
}

// RecordIdempotencyHit records a request replayed from the idempotency store.
func (m *Metrics) RecordIdempotencyHit() {
	m.IdempotencyHitsTotal.Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
