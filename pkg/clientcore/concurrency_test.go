package clientcore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantLimiterCapsConcurrency(t *testing.T) {
	limiter := NewTenantLimiter(2)
	ctx := context.Background()

	release1, err := limiter.Acquire(ctx, "org-1")
	require.NoError(t, err)
	release2, err := limiter.Acquire(ctx, "org-1")
	require.NoError(t, err)

	acquired := int32(0)
	done := make(chan struct{})
	go func() {
		release3, err := limiter.Acquire(ctx, "org-1")
		require.NoError(t, err)
		atomic.StoreInt32(&acquired, 1)
		release3()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&acquired), "third acquire should block while 2 slots held")

	release1()
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&acquired))
	release2()
}

func TestTenantLimiterIsolatesTenants(t *testing.T) {
	limiter := NewTenantLimiter(1)
	ctx := context.Background()

	releaseA, err := limiter.Acquire(ctx, "org-a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := limiter.Acquire(ctx, "org-b")
	require.NoError(t, err)
	releaseB()
}

func TestTenantLimiterRespectsContextCancellation(t *testing.T) {
	limiter := NewTenantLimiter(1)
	ctx := context.Background()
	release, err := limiter.Acquire(ctx, "org-1")
	require.NoError(t, err)
	defer release()

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(cancelCtx, "org-1")
	assert.Error(t, err)
}
