package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/config"
	"github.com/spec-kit/peer-review-service/internal/events"
)

func TestNewLogger_WritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(config.LoggerConfig{Level: "debug", File: file, FileMaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, file)
}

func TestNewLogger_BadLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/reviews/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/reviews/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/reviews/:id", "GET", "204")))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestMetrics_SubscribeCountsEvents(t *testing.T) {
	m := NewMetrics()
	d := events.NewInMemoryDispatcher(zap.NewNop())
	m.Subscribe(d)

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventReviewCreated}))
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventReviewCreated}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviewEvents.WithLabelValues("review_created")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordError("/x", "GET", "INTERNAL")
	m.RecordRateLimited("login")
}
