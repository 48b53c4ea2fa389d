package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func newTestContext(e *echo.Echo, req *http.Request) (*echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func TestCORSAllowsExactOrigin(t *testing.T) {
	e := echo.New()
	cors := NewCORS([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	c, rec := newTestContext(e, req)

	handler := cors.Middleware()(func(c *echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)

	assert.NoError(t, err)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowsWildcardSubdomain(t *testing.T) {
	e := echo.New()
	cors := NewCORS([]string{"*.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://tenant1.example.com")
	c, rec := newTestContext(e, req)

	handler := cors.Middleware()(func(c *echo.Context) error { return c.NoContent(http.StatusOK) })
	require := assert.New(t)
	require.NoError(handler(c))
	require.Equal("https://tenant1.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSBlocksDisallowedOrigin(t *testing.T) {
	e := echo.New()
	cors := NewCORS([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.com")
	c, rec := newTestContext(e, req)

	handler := cors.Middleware()(func(c *echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)

	assert.NoError(t, err)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPassesThroughRequestsWithoutOrigin(t *testing.T) {
	e := echo.New()
	cors := NewCORS([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, rec := newTestContext(e, req)

	called := false
	handler := cors.Middleware()(func(c *echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)

	assert.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
