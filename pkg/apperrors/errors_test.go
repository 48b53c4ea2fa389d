package apperrors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthorized:        401,
		KindForbidden:           403,
		KindBadRequest:          400,
		KindNotFound:            404,
		KindConflict:            409,
		KindRateLimited:         429,
		KindUpstreamUnavailable: 503,
		KindGatewayHTML:         502,
		KindInternal:            500,
	}
	for kind, want := range cases {
		err := New(kind, "boom")
		assert.Equal(t, want, err.HTTPStatus(), "kind %s", kind)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, New(KindRateLimited, "").Retryable())
	assert.True(t, New(KindUpstreamUnavailable, "").Retryable())
	assert.True(t, New(KindGatewayHTML, "").Retryable())
	assert.False(t, New(KindBadRequest, "").Retryable())
	assert.False(t, New(KindUnauthorized, "").Retryable())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("network reset")
	err := Wrap(KindUpstreamUnavailable, cause, "fetch failed")

	found, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstreamUnavailable, found.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestKindOfNonAppError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain error")))
}

func TestWithRetryAfter(t *testing.T) {
	err := New(KindRateLimited, "slow down").WithRetryAfter(30 * time.Second)
	assert.Equal(t, int64(30000), err.RetryAfterMS)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, Truncate(string(long)), 200)

	html := "<html><body>502 Bad Gateway</body></html>"
	assert.Equal(t, "Database temporarily unavailable", Truncate(html))

	htmlWithLeadingSpace := "   \n<!DOCTYPE html><title>oops</title>"
	assert.Equal(t, "Database temporarily unavailable", Truncate(htmlWithLeadingSpace))
}
