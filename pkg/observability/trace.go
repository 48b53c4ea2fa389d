// Package observability continues distributed traces into inbound
// requests, keeps a bounded breadcrumb trail per request, and reports
// unhandled errors to Sentry with that trail attached.
package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orchestrator")

// propagator understands W3C traceparent and baggage headers, the same
// pair spec.md requires continuation for.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// StartRequestSpan extracts any traceparent/baggage headers from r, starts
// a span named "{method} {path}" as a child of the extracted context (or a
// new root span if none was present), and returns the span along with a
// context carrying it.
func StartRequestSpan(ctx context.Context, r *http.Request) (context.Context, trace.Span) {
	parentCtx := propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
	return tracer.Start(parentCtx, r.Method+" "+r.URL.Path)
}

// Inject writes the current trace context of ctx into outbound request
// headers, so a downstream service (or webhook retry) can continue the
// same trace.
func Inject(ctx context.Context, header http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(header))
}
