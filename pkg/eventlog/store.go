package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// ErrDuplicate is returned by Insert when an event with the same
// (source, external_event_id) has already been recorded.
var ErrDuplicate = errors.New("webhook event already recorded")

// Store persists webhook events and tracks their processing status.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a connection pool for webhook event storage.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Insert records a new webhook delivery. If the source supplies an
// external_event_id and an event with the same (source, external_event_id)
// already exists, Insert returns ErrDuplicate and the existing event's ID
// is not exposed — callers should look the event up separately if needed.
func (s *Store) Insert(ctx context.Context, ev NewEvent) (*Event, error) {
	var externalID sql.NullString
	if ev.ExternalEventID != "" {
		externalID = sql.NullString{String: ev.ExternalEventID, Valid: true}
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO webhook_events (source, event_type, external_event_id, payload, headers, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source, external_event_id) WHERE external_event_id IS NOT NULL DO NOTHING
		RETURNING id, org_id, source, event_type, external_event_id, payload, headers, status, error_message, received_at, processed_at
	`, ev.Source, ev.EventType, externalID, []byte(ev.Payload), []byte(ev.Headers), StatusReceived, time.Now())

	var out Event
	if err := row.StructScan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting webhook event: %w", err)
	}
	return &out, nil
}

// AssignOrg records the tenant an event was resolved to, once the
// source-specific processor has identified it.
func (s *Store) AssignOrg(ctx context.Context, id, orgID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_events SET org_id = $1 WHERE id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("assigning org to webhook event: %w", err)
	}
	return nil
}

// MarkProcessed records a successful terminal outcome.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, processed_at = $2 WHERE id = $3`,
		StatusProcessed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("marking webhook event processed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with its cause.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := cause.Error()
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, processed_at = $2, error_message = $3 WHERE id = $4`,
		StatusFailed, time.Now(), msg, id)
	if err != nil {
		return fmt.Errorf("marking webhook event failed: %w", err)
	}
	return nil
}

// MarkIgnored records that a recognized-but-irrelevant event (e.g. a Stripe
// event type this system doesn't act on) was deliberately skipped.
func (s *Store) MarkIgnored(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, processed_at = $2 WHERE id = $3`,
		StatusIgnored, time.Now(), id)
	if err != nil {
		return fmt.Errorf("marking webhook event ignored: %w", err)
	}
	return nil
}

// Get fetches a single event by id.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	var out Event
	err := s.db.GetContext(ctx, &out, `
		SELECT id, org_id, source, event_type, external_event_id, payload, headers, status, error_message, received_at, processed_at
		FROM webhook_events WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "webhook event not found")
		}
		return nil, fmt.Errorf("fetching webhook event: %w", err)
	}
	return &out, nil
}
