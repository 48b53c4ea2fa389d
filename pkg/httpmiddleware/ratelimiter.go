package httpmiddleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a sliding-window request count per (user_id,
// endpoint), backed by Redis sorted sets so the window slides rather than
// resetting on fixed boundaries. On any Redis error the limiter fails
// open: the request is allowed through and a warning is logged, so a
// store outage never turns into blanket 429s.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	userID UserIDFunc
}

// NewRateLimiter builds a limiter allowing at most limit requests per
// window for each (user, endpoint) pair.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, userID UserIDFunc) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, userID: userID}
}

// Middleware returns the echo.MiddlewareFunc.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			user := ""
			if rl.userID != nil {
				user = rl.userID(c)
			}
			key := fmt.Sprintf("ratelimit:%s:%s", c.Request().URL.Path, user)

			allowed, retryAfter, err := rl.allow(c.Request().Context(), key)
			if err != nil {
				slog.Warn("rate limiter store unavailable, failing open", "key", key, "error", err)
				return next(c)
			}
			if !allowed {
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
				return c.NoContent(http.StatusTooManyRequests)
			}
			return next(c)
		}
	}
}

// allow implements the sliding window: each accepted request is recorded
// as a sorted-set member scored by its timestamp; members older than the
// window are trimmed before counting, so the count reflects exactly the
// trailing window rather than a reset-on-boundary bucket.
func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	count := pipe.ZCard(ctx, key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("httpmiddleware: rate limit pipeline: %w", err)
	}

	if int(count.Val()) >= rl.limit {
		return false, rl.window, nil
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := rl.client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return false, 0, fmt.Errorf("httpmiddleware: recording rate limit hit: %w", err)
	}
	rl.client.Expire(ctx, key, rl.window)

	return true, 0, nil
}
