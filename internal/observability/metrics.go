package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/peer-review-service/internal/events"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry     *prometheus.Registry
	requestCount *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errorCount   *prometheus.CounterVec
	reviewEvents *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
			[]string{"path", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Latency of HTTP requests",
				Buckets: prometheus.DefBuckets,
			}, []string{"path", "method"},
		),
		errorCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_errors_total", Help: "Count of error responses by code"},
			[]string{"path", "method", "code"},
		),
		reviewEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "review_events_total", Help: "Domain events by type"},
			[]string{"type"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rate_limited_total", Help: "Requests rejected by the rate limiter"},
			[]string{"scope"},
		),
	}

	m.registry.MustRegister(
		m.requestCount,
		m.latency,
		m.errorCount,
		m.reviewEvents,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordRateLimited counts a rejected request for scope.
func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		m.RecordRequest(path, c.Method(), responseStatus(c, err), time.Since(start))
		if err != nil {
			code := apperrors.CodeInternal
			if fe, ok := err.(*fiber.Error); ok {
				code = strconv.Itoa(fe.Code)
			} else if de := apperrors.ToDomainError(err); de != nil {
				code = de.Code
			}
			m.RecordError(path, c.Method(), code)
		}
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Subscribe counts every domain event published on dispatcher.
func (m *Metrics) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventIdentityRegistered,
		events.EventVerificationRequested,
		events.EventIdentityVerified,
		events.EventIdentityDeleted,
		events.EventReviewCreated,
		events.EventReviewUpdated,
		events.EventReviewDeleted,
	} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			m.reviewEvents.WithLabelValues(string(event.Type)).Inc()
			return nil
		})
	}
}
