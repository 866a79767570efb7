// Package ratelimit bounds how often a client may hit an endpoint.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits at most a fixed number of events per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Recorder observes rejected requests.
type Recorder interface {
	RecordRateLimited(scope string)
}

const keyPrefix = "ratelimit:"

// RedisLimiter is a fixed-window counter shared by every instance of the
// service.
type RedisLimiter struct {
	client redis.UniversalClient
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter builds a limiter admitting limit events per window for scope.
func NewRedisLimiter(client redis.UniversalClient, scope string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, scope: scope, limit: limit, window: window, now: time.Now}
}

// Allow increments the counter for key and reports whether it is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	window := now.UnixNano() / int64(l.window)
	redisKey := keyPrefix + l.scope + ":" + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	if count > l.limit {
		windowEnd := time.Unix(0, (window+1)*int64(l.window))
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

// Middleware rejects requests over the limit with RATE_LIMITED. Requests are
// keyed by client IP. When primary errors, fallback decides instead.
func Middleware(scope string, primary, fallback Limiter, recorder Recorder, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		decision, err := primary.Allow(c.UserContext(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable; using local limiter", zap.String("scope", scope), zap.Error(err))
			if fallback == nil {
				return c.Next()
			}
			if decision, err = fallback.Allow(c.UserContext(), key); err != nil {
				return c.Next()
			}
		}

		if !decision.Allowed {
			if recorder != nil {
				recorder.RecordRateLimited(scope)
			}
			seconds := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return apperrors.NewRateLimited(seconds)
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		return c.Next()
	}
}
