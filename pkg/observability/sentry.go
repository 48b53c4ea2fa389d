package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/trace"
)

// Reporter captures unhandled errors with the current request's breadcrumb
// trail, span context, and user tag attached.
type Reporter struct {
	enabled bool
}

// NewReporter initializes the global Sentry client. dsn == "" disables
// reporting entirely (Capture becomes a no-op) rather than failing
// startup — error reporting is never load-bearing for serving a request.
func NewReporter(dsn, environment, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{enabled: false}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return nil, fmt.Errorf("observability: initializing sentry: %w", err)
	}
	return &Reporter{enabled: true}, nil
}

// Capture reports err along with ctx's breadcrumb trail, current span's
// trace/span IDs, and userID as a tag. A nil or disabled Reporter is safe
// to call Capture on.
func (r *Reporter) Capture(ctx context.Context, err error, userID string) {
	if r == nil || !r.enabled || err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for _, b := range TrailFromContext(ctx).Items() {
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Timestamp: b.Timestamp,
				Category:  b.Category,
				Message:   b.Message,
				Data:      b.Data,
			}, maxBreadcrumbs)
		}
		if userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}

		span := trace.SpanContextFromContext(ctx)
		if span.IsValid() {
			scope.SetTag("trace_id", span.TraceID().String())
			scope.SetTag("span_id", span.SpanID().String())
		}
	})

	hub.CaptureException(err)
}

// Flush blocks until buffered events are sent or timeout elapses.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r == nil || !r.enabled {
		return true
	}
	return sentry.Flush(timeout)
}
