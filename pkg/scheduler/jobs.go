package scheduler

import (
	"context"
)

// NewTickJob wraps any tick(ctx) (T, error) function as a Job, given a
// function that renders T into a one-line summary string.
func NewTickJob[T any](name, spec string, tick func(ctx context.Context) (T, error), summarize func(T) string) Job {
	return Job{
		Name: name,
		Spec: spec,
		Run: func(ctx context.Context) (string, error) {
			result, err := tick(ctx)
			if err != nil {
				return "", err
			}
			return summarize(result), nil
		},
	}
}
