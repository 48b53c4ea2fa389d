// Package httpmiddleware provides Echo v5 middleware shared across the
// orchestrator's HTTP API: response caching, per-user rate limiting, and
// CORS.
package httpmiddleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	echo "github.com/labstack/echo/v5"
)

type cacheEntry struct {
	etag      string
	body      []byte
	header    http.Header
	expiresAt time.Time
}

// UserIDFunc extracts the caller identity a cache or rate-limit key is
// scoped to. Requests with no resolved identity use "" (same-origin /
// unauthenticated traffic still gets cached, scoped separately from any
// authenticated caller).
type UserIDFunc func(c *echo.Context) string

// ResponseCache is an LRU, ETag-aware cache for GET responses, keyed by
// (method, path, query, user). Only 200-status responses are stored; a
// request whose If-None-Match matches the cached ETag gets a 304 with no
// body.
type ResponseCache struct {
	cache  *lru.Cache[string, cacheEntry]
	ttl    time.Duration
	userID UserIDFunc
}

// NewResponseCache builds a cache holding up to size entries for ttl each.
func NewResponseCache(size int, ttl time.Duration, userID UserIDFunc) (*ResponseCache, error) {
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("httpmiddleware: creating response cache: %w", err)
	}
	return &ResponseCache{cache: c, ttl: ttl, userID: userID}, nil
}

// Middleware returns the echo.MiddlewareFunc. Only GET requests are
// considered for caching; everything else passes through untouched.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}

			key := rc.key(c)
			if entry, ok := rc.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
				if inm := c.Request().Header.Get("If-None-Match"); inm != "" && inm == entry.etag {
					return c.NoContent(http.StatusNotModified)
				}
				for k, vs := range entry.header {
					for _, v := range vs {
						c.Response().Header().Add(k, v)
					}
				}
				c.Response().Header().Set("ETag", entry.etag)
				return c.Blob(http.StatusOK, entry.header.Get("Content-Type"), entry.body)
			}

			rec := &responseRecorder{ResponseWriter: c.Response().Writer, buf: &bytes.Buffer{}, status: http.StatusOK}
			c.Response().Writer = rec

			if err := next(c); err != nil {
				return err
			}

			if rec.status == http.StatusOK {
				etag := etagFor(rec.buf.Bytes())
				c.Response().Header().Set("ETag", etag)
				rc.cache.Add(key, cacheEntry{
					etag:      etag,
					body:      rec.buf.Bytes(),
					header:    rec.Header().Clone(),
					expiresAt: time.Now().Add(rc.ttl),
				})
			}
			return nil
		}
	}
}

func (rc *ResponseCache) key(c *echo.Context) string {
	user := ""
	if rc.userID != nil {
		user = rc.userID(c)
	}
	r := c.Request()
	return r.Method + "|" + r.URL.Path + "|" + r.URL.RawQuery + "|" + user
}

func etagFor(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// responseRecorder buffers a handler's response so it can be inspected
// (status, body) before being cached, while still writing through to the
// real ResponseWriter for the current request.
type responseRecorder struct {
	http.ResponseWriter
	buf    *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
