// Package webhookingest implements the common verify → parse → idempotent
// insert → resolve tenant → process pipeline shared by every webhook
// endpoint. Per-source quirks (signature scheme, field names, which events
// to act on) live under sources/; everything else is handled once here.
package webhookingest

import (
	"context"
	"net/http"

	"github.com/revloop/orchestrator/pkg/eventlog"
)

// Source adapts one upstream webhook provider to the common pipeline.
type Source interface {
	// Name identifies the source as stored on eventlog.Event.Source.
	Name() string

	// Verify checks the request's signature/headers against body. Returning
	// a non-nil error fails closed — the delivery is rejected before it is
	// ever persisted.
	Verify(r *http.Request, body []byte) error

	// ParseIdentity extracts the event type and, where the provider supplies
	// one, a stable external event id used for idempotency. ExternalEventID
	// may be empty for providers that don't guarantee one.
	ParseIdentity(body []byte) (eventType string, externalEventID string, err error)

	// ResolveOrg maps the payload to a tenant. Returning "" is valid for
	// sources that can only resolve tenancy once Process runs (e.g. a bridge
	// payload that already carries an org_id is resolved here; a bot-id
	// lookup may instead resolve tenancy inside Process against the owning
	// recording).
	ResolveOrg(ctx context.Context, body []byte) (orgID string, err error)

	// Process performs the source's domain action for this event
	// (scheduling a recording, enqueuing a notification, routing a ticket,
	// updating billing state, ...). Process must be safe to call again for
	// the same event.ID if a prior attempt failed before marking it processed.
	Process(ctx context.Context, event *eventlog.Event) error
}

// Result summarizes how a delivery was handled, returned to the HTTP layer
// so it can choose the right response code independent of error kind.
type Result struct {
	EventID  string
	Status   eventlog.Status
	Ignored  bool
	Duplicate bool
}
