// Package tenancy resolves which org and user own an inbound calendar event,
// a webhook payload that carries no tenant identifier of its own. Every
// other webhook source either signs per-org (MeetingBaaS, Sentry bridge) or
// carries Stripe's own customer id; a meeting invite only ever carries
// attendee emails, so tenancy here is resolved via the calendar connection
// that registered one of the attendees.
package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// Store resolves org/user identity from calendar connections.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type connection struct {
	OrgID  string `db:"org_id"`
	UserID string `db:"user_id"`
}

// ResolveOrg implements recording.OrgResolver. It matches the first
// attendee email with a registered calendar connection; meetings with no
// matching attendee return a not-found error rather than guessing.
func (s *Store) ResolveOrg(ctx context.Context, ev sources.MeetingEvent) (orgID, userID string, err error) {
	if len(ev.AttendeeEmails) == 0 {
		return "", "", apperrors.New(apperrors.KindNotFound, "meeting event carries no attendee emails")
	}

	var conn connection
	err = s.db.GetContext(ctx, &conn, `
		SELECT org_id, user_id FROM calendar_connections
		WHERE organizer_email = ANY($1)
		LIMIT 1`, ev.AttendeeEmails)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", apperrors.New(apperrors.KindNotFound, "no calendar connection matches this meeting's attendees")
		}
		return "", "", fmt.Errorf("resolving org from calendar connection: %w", err)
	}
	return conn.OrgID, conn.UserID, nil
}

// OrgDomain implements recording.OrgResolver.
func (s *Store) OrgDomain(ctx context.Context, orgID string) (string, error) {
	var domain sql.NullString
	err := s.db.GetContext(ctx, &domain, `SELECT domain FROM orgs WHERE id = $1`, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.New(apperrors.KindNotFound, "org not found")
		}
		return "", fmt.Errorf("reading org domain: %w", err)
	}
	return domain.String, nil
}
