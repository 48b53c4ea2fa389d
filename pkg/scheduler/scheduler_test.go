package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New()
	err := s.Register(Job{Name: "bad", Spec: "not a cron spec", Run: func(ctx context.Context) (string, error) {
		return "", nil
	}})
	assert.Error(t, err)
}

func TestRegisterAcceptsValidSpec(t *testing.T) {
	s := New()
	err := s.Register(Job{Name: "ok", Spec: "*/5 * * * *", Run: func(ctx context.Context) (string, error) {
		return "done", nil
	}})
	require.NoError(t, err)
	assert.Len(t, s.jobs, 1)
}

func TestRunOnceLogsSuccessWithoutPanicking(t *testing.T) {
	var ran atomic.Bool
	job := Job{Name: "test", Spec: "* * * * *", Run: func(ctx context.Context) (string, error) {
		ran.Store(true)
		return "1 claimed", nil
	}}

	s := New()
	assert.NotPanics(t, func() { s.runOnce(job) })
	assert.True(t, ran.Load())
}

func TestRunOnceSurvivesJobError(t *testing.T) {
	job := Job{Name: "test", Spec: "* * * * *", Run: func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	}}

	s := New()
	assert.NotPanics(t, func() { s.runOnce(job) })
}

type fakeTickResult struct {
	claimed int
}

func TestNewTickJobSummarizesResult(t *testing.T) {
	job := NewTickJob("media_upload", "*/5 * * * *",
		func(ctx context.Context) (fakeTickResult, error) {
			return fakeTickResult{claimed: 4}, nil
		},
		func(r fakeTickResult) string {
			return fmt.Sprintf("claimed=%d", r.claimed)
		},
	)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claimed=4", summary)
}

func TestNewTickJobPropagatesError(t *testing.T) {
	job := NewTickJob("media_upload", "*/5 * * * *",
		func(ctx context.Context) (fakeTickResult, error) {
			return fakeTickResult{}, errors.New("claim failed")
		},
		func(r fakeTickResult) string { return "" },
	)

	_, err := job.Run(context.Background())
	assert.Error(t, err)
}
