package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "login", 3, time.Minute)
	fixed := time.Date(2025, 4, 1, 12, 0, 15, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)

	d, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are independent")

	fixed = fixed.Add(time.Minute)
	d, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts a new count")
}

func TestRedisLimiter_ErrorsWhenUnreachable(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	_, err := NewRedisLimiter(client, "login", 3, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestLocalLimiter(t *testing.T) {
	limiter := NewLocalLimiter(2, time.Minute)
	ctx := context.Background()

	d, _ := limiter.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	d, _ = limiter.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestLocalLimiter_DropsIdleBuckets(t *testing.T) {
	limiter := NewLocalLimiter(1, time.Minute)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		d, _ := limiter.Allow(ctx, ip)
		assert.True(t, d.Allowed)
	}
	d, _ := limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Len(t, limiter.buckets, 3)

	now = now.Add(30 * time.Second)
	_, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.Len(t, limiter.buckets, 3, "nothing idle for a full window yet")

	now = now.Add(61 * time.Second)
	d, _ = limiter.Allow(ctx, "10.0.0.4")
	assert.True(t, d.Allowed)
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "10.0.0.4")
}

type countingRecorder struct{ scopes []string }

func (r *countingRecorder) RecordRateLimited(scope string) { r.scopes = append(r.scopes, scope) }

func newApp(primary, fallback Limiter, recorder Recorder) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Post("/login", Middleware("login", primary, fallback, recorder, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	recorder := &countingRecorder{}
	app := newApp(NewRedisLimiter(client, "login", 1, time.Minute), nil, recorder)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, []string{"login"}, recorder.scopes)
}

func TestMiddleware_FallsBackToLocal(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	app := newApp(NewRedisLimiter(client, "login", 1, time.Minute), NewLocalLimiter(1, time.Minute), nil)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
