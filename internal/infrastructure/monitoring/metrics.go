package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/outbound"
)

const namespace = "sommelier"

// Metrics handles Prometheus metrics collection for the pairing pipeline and
// its adapters. It doubles as the pipeline observer.
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	parseOutcomes    *prometheus.CounterVec
	truncations      *prometheus.CounterVec
	crawlPages       *prometheus.HistogramVec

	// Upstream metrics
	fetchRequests   *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	aiRequestsTotal *prometheus.CounterVec
	aiDuration      *prometheus.HistogramVec
}

var _ outbound.PipelineObserver = (*Metrics)(nil)

// NewMetrics registers all collectors on a fresh registry, so several
// instances can coexist in tests.
func NewMetrics(logger *zap.Logger) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		logger:   logger,
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),

		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pairing pipeline runs by task and result code",
			},
			[]string{"task", "code"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end pairing latency in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
			},
			[]string{"task"},
		),
		parseOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_outcomes_total",
				Help:      "Response shapes accepted by the parser",
			},
			[]string{"task", "outcome"},
		),
		truncations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "truncations_total",
				Help:      "Completions cut off by the output token budget",
			},
			[]string{"task"},
		),
		crawlPages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crawl_pages",
				Help:      "Subpages per crawl by stage",
				Buckets:   []float64{0, 1, 2, 4, 6, 8, 10},
			},
			[]string{"stage"},
		),

		fetchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Outbound page fetches by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Outbound page fetch latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
		),
		aiRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "Total number of AI requests",
			},
			[]string{"provider", "model", "status"},
		),
		aiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_request_duration_seconds",
				Help:    "AI request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
			},
			[]string{"provider", "model"},
		),
	}
}

// Registry exposes the underlying registry so other exporters can share it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPMiddleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// CrawlCompleted implements outbound.PipelineObserver.
func (m *Metrics) CrawlCompleted(level1, level2, included int) {
	m.crawlPages.WithLabelValues("level1").Observe(float64(level1))
	m.crawlPages.WithLabelValues("level2").Observe(float64(level2))
	m.crawlPages.WithLabelValues("included").Observe(float64(included))
}

// ParseCompleted implements outbound.PipelineObserver.
func (m *Metrics) ParseCompleted(task pairing.TaskType, outcome string) {
	m.parseOutcomes.WithLabelValues(string(task), outcome).Inc()
}

// Truncated implements outbound.PipelineObserver.
func (m *Metrics) Truncated(task pairing.TaskType) {
	m.truncations.WithLabelValues(string(task)).Inc()
}

// PipelineCompleted implements outbound.PipelineObserver.
func (m *Metrics) PipelineCompleted(task pairing.TaskType, code string, elapsed time.Duration) {
	m.pipelineRuns.WithLabelValues(string(task), code).Inc()
	m.pipelineDuration.WithLabelValues(string(task)).Observe(elapsed.Seconds())
}

// FetchCompleted records one outbound page fetch.
func (m *Metrics) FetchCompleted(outcome string, elapsed time.Duration) {
	m.fetchRequests.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// AIRequest records one completion call.
func (m *Metrics) AIRequest(provider, model, status string, duration time.Duration) {
	m.aiRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.aiDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
