package clientcore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(http.StatusTooManyRequests))
	assert.True(t, ShouldRetry(500))
	assert.True(t, ShouldRetry(503))
	assert.False(t, ShouldRetry(400))
	assert.False(t, ShouldRetry(404))
	assert.False(t, ShouldRetry(200))
}

func TestRetryAfterSeconds(t *testing.T) {
	d, ok := RetryAfter("30")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d)
}

func TestRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	d, ok := RetryAfter(future)
	require.True(t, ok)
	assert.InDelta(t, 10*time.Second, d, float64(2*time.Second))
}

func TestRetryAfterAbsent(t *testing.T) {
	_, ok := RetryAfter("")
	assert.False(t, ok)
}

func TestDoStopsOnNonRetryableStatus(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy(), func(ctx context.Context, attempt int) (Attempt, error) {
		calls++
		return Attempt{StatusCode: 400}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpToMaxThenFails(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), policy, func(ctx context.Context, attempt int) (Attempt, error) {
		calls++
		return Attempt{StatusCode: 503}, nil
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestDoHonorsRetryAfterOverBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 1, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	start := time.Now()
	_ = Do(context.Background(), policy, func(ctx context.Context, attempt int) (Attempt, error) {
		calls++
		if calls == 1 {
			return Attempt{StatusCode: 429, RetryAfterValue: "0"}, nil
		}
		return Attempt{StatusCode: 200}, nil
	})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, calls)
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	err := Do(context.Background(), policy, func(ctx context.Context, attempt int) (Attempt, error) {
		calls++
		if calls < 2 {
			return Attempt{StatusCode: 500}, nil
		}
		return Attempt{StatusCode: 200}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
