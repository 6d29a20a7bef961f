package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TransitionsTotal      *prometheus.CounterVec
	TransitionFailures    *prometheus.CounterVec
	NumbersAllocatedTotal *prometheus.CounterVec
	RenderDuration        prometheus.Histogram
	ReviewEscalations     prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portarias_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portarias_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portarias_transitions_total",
				Help: "Committed workflow transitions",
			},
			[]string{"action", "to"},
		),
		TransitionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portarias_transition_failures_total",
				Help: "Workflow transitions that failed, by error kind",
			},
			[]string{"action", "kind"},
		),
		NumbersAllocatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portarias_numbers_allocated_total",
				Help: "Official numbers handed out by the allocator",
			},
			[]string{"secretaria"},
		),
		RenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portarias_render_duration_seconds",
				Help:    "Time spent rendering and uploading a portaria PDF",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReviewEscalations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portarias_review_escalations_total",
				Help: "Review rejections that reached the escalation threshold",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransitionsTotal,
		m.TransitionFailures,
		m.NumbersAllocatedTotal,
		m.RenderDuration,
		m.ReviewEscalations,
	)
	return m
}

func (m *Metrics) NumberAllocated(secretariaID string) {
	m.NumbersAllocatedTotal.WithLabelValues(secretariaID).Inc()
}

func (m *Metrics) TransitionCommitted(action, to string) {
	m.TransitionsTotal.WithLabelValues(action, to).Inc()
}

func (m *Metrics) TransitionFailed(action, kind string) {
	m.TransitionFailures.WithLabelValues(action, kind).Inc()
}

func (m *Metrics) RenderObserved(d time.Duration) {
	m.RenderDuration.Observe(d.Seconds())
}

func (m *Metrics) ReviewEscalated() {
	m.ReviewEscalations.Inc()
}

// Middleware records request counts and latencies by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
