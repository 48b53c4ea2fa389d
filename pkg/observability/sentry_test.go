package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReporterDisabledWithEmptyDSN(t *testing.T) {
	r, err := NewReporter("", "test", "v1")
	require.NoError(t, err)
	assert.False(t, r.enabled)
}

func TestCaptureOnDisabledReporterDoesNotPanic(t *testing.T) {
	r, err := NewReporter("", "test", "v1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Capture(context.Background(), errors.New("boom"), "user1")
	})
}

func TestCaptureOnNilReporterDoesNotPanic(t *testing.T) {
	var r *Reporter
	assert.NotPanics(t, func() {
		r.Capture(context.Background(), errors.New("boom"), "user1")
	})
}

func TestCaptureIgnoresNilError(t *testing.T) {
	r, err := NewReporter("", "test", "v1")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		r.Capture(context.Background(), nil, "user1")
	})
}
