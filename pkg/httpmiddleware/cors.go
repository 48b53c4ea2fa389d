package httpmiddleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// CORS allows an exact-origin and wildcard-domain allowlist. A request with
// no Origin header is treated as same-origin and passes through untouched.
// A request whose Origin doesn't match anything in the allowlist gets no
// Access-Control-Allow-Origin header at all — a hard block rather than an
// echoed-back denial.
type CORS struct {
	allowed []string
}

// NewCORS builds a CORS middleware from a list of allowed origins. An entry
// like "*.example.com" matches any subdomain of example.com in addition to
// exact-origin entries like "https://app.example.com".
func NewCORS(allowed []string) *CORS {
	return &CORS{allowed: allowed}
}

// Middleware returns the echo.MiddlewareFunc.
func (cc *CORS) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin == "" {
				return next(c)
			}

			if cc.matches(origin) {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

func (cc *CORS) matches(origin string) bool {
	for _, allowed := range cc.allowed {
		if strings.HasPrefix(allowed, "*.") {
			domain := strings.TrimPrefix(allowed, "*")
			if strings.HasSuffix(origin, domain) {
				return true
			}
			continue
		}
		if origin == allowed {
			return true
		}
	}
	return false
}
