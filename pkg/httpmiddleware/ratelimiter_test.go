package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimiter(t *testing.T, limit int, window time.Duration, userID UserIDFunc) *RateLimiter {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRateLimiter(client, limit, window, userID)
}

func doRequest(t *testing.T, handler echo.MiddlewareFunc) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/deals", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler(func(c *echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	require.NoError(t, err)
	return rec.Code
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := newTestRateLimiter(t, 3, time.Minute, func(c *echo.Context) string { return "user1" })
	mw := rl.Middleware()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(t, mw))
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := newTestRateLimiter(t, 2, time.Minute, func(c *echo.Context) string { return "user1" })
	mw := rl.Middleware()

	assert.Equal(t, http.StatusOK, doRequest(t, mw))
	assert.Equal(t, http.StatusOK, doRequest(t, mw))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(t, mw))
}

func TestRateLimiterScopesPerUser(t *testing.T) {
	callerID := "user1"
	rl := newTestRateLimiter(t, 1, time.Minute, func(c *echo.Context) string { return callerID })
	mw := rl.Middleware()

	assert.Equal(t, http.StatusOK, doRequest(t, mw))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(t, mw))

	callerID = "user2"
	assert.Equal(t, http.StatusOK, doRequest(t, mw))
}

func TestRateLimiterFailsOpenWhenStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	rl := NewRateLimiter(client, 1, time.Minute, func(c *echo.Context) string { return "user1" })

	assert.Equal(t, http.StatusOK, doRequest(t, rl.Middleware()))
}
