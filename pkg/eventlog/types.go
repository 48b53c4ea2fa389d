// Package eventlog stores every inbound webhook delivery and enforces
// idempotency on the (source, external_event_id) pair before a payload is
// handed to a source-specific processor.
package eventlog

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a stored webhook event.
type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusIgnored    Status = "ignored"
)

// Event is a single recorded webhook delivery.
type Event struct {
	ID               string          `db:"id"`
	OrgID            *string         `db:"org_id"`
	Source           string          `db:"source"`
	EventType        string          `db:"event_type"`
	ExternalEventID  *string         `db:"external_event_id"`
	Payload          json.RawMessage `db:"payload"`
	Headers          json.RawMessage `db:"headers"`
	Status           Status          `db:"status"`
	ErrorMessage     *string         `db:"error_message"`
	ReceivedAt       time.Time       `db:"received_at"`
	ProcessedAt      *time.Time      `db:"processed_at"`
}

// NewEvent describes a webhook delivery prior to insertion.
type NewEvent struct {
	Source          string
	EventType       string
	ExternalEventID string // empty when the source provides no stable id
	Payload         json.RawMessage
	Headers         json.RawMessage
}
