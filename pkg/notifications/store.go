package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store persists the notification queue, delivery interactions, and
// per-user engagement metrics.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a connection pool for notification storage.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts a new queue item in pending status.
func (s *Store) Enqueue(ctx context.Context, n NewNotification) (string, error) {
	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO notification_queue_items
			(user_id, org_id, notification_type, channel, priority, payload, scheduled_for, optimal_send_time, status, attempt_count, max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
		RETURNING id
	`, n.UserID, n.OrgID, n.NotificationType, n.Channel, n.Priority, []byte(n.Payload), n.ScheduledFor, n.OptimalSendTime, StatusPending, maxAttempts, time.Now())

	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("enqueueing notification: %w", err)
	}
	return id, nil
}

// ClaimBatch atomically claims up to limit pending, due items, ordered by
// priority (urgent first) then scheduled_for, using FOR UPDATE SKIP LOCKED
// so concurrent workers never double-claim.
func (s *Store) ClaimBatch(ctx context.Context, workerID string, limit int) ([]NotificationQueueItem, error) {
	rows, err := s.db.QueryxContext(ctx, `
		WITH claimed AS (
			SELECT id FROM notification_queue_items
			WHERE status = $1 AND scheduled_for <= $2
			ORDER BY
				CASE priority
					WHEN 'urgent' THEN 0
					WHEN 'high' THEN 1
					WHEN 'normal' THEN 2
					ELSE 3
				END,
				scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_queue_items
		SET status = $4, locked_by = $5, locked_at = $2
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, user_id, org_id, notification_type, channel, priority, payload, scheduled_for,
			optimal_send_time, status, attempt_count, max_attempts, locked_by, locked_at, last_error, sent_at, created_at
	`, StatusPending, time.Now(), limit, StatusProcessing, workerID)
	if err != nil {
		return nil, fmt.Errorf("claiming notification batch: %w", err)
	}
	defer rows.Close()

	var items []NotificationQueueItem
	for rows.Next() {
		var item NotificationQueueItem
		if err := rows.StructScan(&item); err != nil {
			return nil, fmt.Errorf("scanning claimed notification: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkSent records successful delivery and inserts the interaction row in
// the same transaction.
func (s *Store) MarkSent(ctx context.Context, item NotificationQueueItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting sent transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE notification_queue_items SET status = $1, sent_at = $2, locked_by = NULL, locked_at = NULL WHERE id = $3`,
		StatusSent, now, item.ID,
	); err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notification_interactions (user_id, org_id, notification_type, delivered_at, delivered_via)
		VALUES ($1, $2, $3, $4, $5)
	`, item.UserID, item.OrgID, item.NotificationType, now, item.Channel); err != nil {
		return fmt.Errorf("recording notification interaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_metrics SET notifications_since_last_feedback = notifications_since_last_feedback + 1 WHERE user_id = $1`,
		item.UserID,
	); err != nil {
		return fmt.Errorf("incrementing feedback counter: %w", err)
	}

	return tx.Commit()
}

// MarkFailed increments attempt_count. If the item has exhausted
// max_attempts it is marked failed; otherwise it is left pending with its
// scheduled_for pushed out by backoff.
func (s *Store) MarkFailed(ctx context.Context, item NotificationQueueItem, reason string, backoff time.Duration) error {
	nextAttempt := item.AttemptCount + 1
	if nextAttempt >= item.MaxAttempts {
		_, err := s.db.ExecContext(ctx, `
			UPDATE notification_queue_items
			SET status = $1, attempt_count = $2, last_error = $3, locked_by = NULL, locked_at = NULL
			WHERE id = $4
		`, StatusFailed, nextAttempt, reason, item.ID)
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_queue_items
		SET status = $1, attempt_count = $2, last_error = $3, scheduled_for = $4, locked_by = NULL, locked_at = NULL
		WHERE id = $5
	`, StatusPending, nextAttempt, reason, time.Now().Add(backoff), item.ID)
	return err
}

// MarkDelayed transitions an item to delayed with the computed
// next-allowed-at gate. Delayed items are returned to pending by
// RequeueDelayed once their gate elapses.
func (s *Store) MarkDelayed(ctx context.Context, id string, nextAllowedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_queue_items
		SET status = $1, scheduled_for = $2, locked_by = NULL, locked_at = NULL
		WHERE id = $3
	`, StatusDelayed, nextAllowedAt, id)
	return err
}

// RequeueDelayed flips delayed items whose gate has elapsed back to
// pending so the next tick re-evaluates them.
func (s *Store) RequeueDelayed(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_queue_items SET status = $1 WHERE status = $2 AND scheduled_for <= $3`,
		StatusPending, StatusDelayed, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("requeuing delayed notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ReclaimStale returns processing items whose lock is older than
// staleThreshold to pending, recovering from a worker that crashed
// mid-dispatch.
func (s *Store) ReclaimStale(ctx context.Context, staleThreshold time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_queue_items
		SET status = $1, locked_by = NULL, locked_at = NULL
		WHERE status = $2 AND locked_at < $3
	`, StatusPending, StatusProcessing, time.Now().Add(-staleThreshold))
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CancelStale bulk-cancels pending items whose scheduled_for is old enough
// that delivery is no longer timely.
func (s *Store) CancelStale(ctx context.Context, staleThreshold time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_queue_items
		SET status = $1
		WHERE status = $2 AND scheduled_for + $3 < $4
	`, StatusCancelled, StatusPending, staleThreshold, time.Now())
	if err != nil {
		return 0, fmt.Errorf("cancelling stale notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountSentSince counts items sent to userID at the given priority since
// the given time, used for the hour/day frequency caps.
func (s *Store) CountSentSince(ctx context.Context, userID string, priority Priority, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM notification_queue_items
		WHERE user_id = $1 AND priority = $2 AND status = $3 AND sent_at >= $4
	`, userID, priority, StatusSent, since)
	if err != nil {
		return 0, fmt.Errorf("counting sent notifications: %w", err)
	}
	return count, nil
}

// LastSendTime returns the most recent delivery to userID on any channel
// at any priority, or nil if none has ever been sent.
func (s *Store) LastSendTime(ctx context.Context, userID string) (*time.Time, error) {
	var t time.Time
	err := s.db.GetContext(ctx, &t,
		`SELECT sent_at FROM notification_queue_items WHERE user_id = $1 AND status = $2 ORDER BY sent_at DESC LIMIT 1`,
		userID, StatusSent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving last send time: %w", err)
	}
	return &t, nil
}

// GetUserMetrics loads a user's fatigue/frequency state, creating a
// default row (moderate frequency, zero fatigue) if none exists yet.
func (s *Store) GetUserMetrics(ctx context.Context, userID, orgID string) (*UserMetrics, error) {
	var m UserMetrics
	err := s.db.GetContext(ctx, &m, `SELECT * FROM user_metrics WHERE user_id = $1`, userID)
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading user metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_metrics (user_id, org_id, preferred_notification_frequency, notification_fatigue_level, overall_engagement_score, notifications_since_last_feedback)
		VALUES ($1, $2, $3, 0, 50, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, orgID, FrequencyModerate)
	if err != nil {
		return nil, fmt.Errorf("initializing user metrics: %w", err)
	}
	return &UserMetrics{
		UserID:                         userID,
		OrgID:                          orgID,
		PreferredNotificationFrequency: FrequencyModerate,
		OverallEngagementScore:         50,
	}, nil
}

// MarkFeedbackRequested records that a feedback prompt was just queued for
// userID, resetting the since-last-feedback counter so the next prompt
// waits for both a fresh 10 notifications and the 14-day interval.
func (s *Store) MarkFeedbackRequested(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_metrics
		SET notifications_since_last_feedback = 0, last_feedback_requested_at = $1
		WHERE user_id = $2
	`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("marking feedback requested: %w", err)
	}
	return nil
}

// ApplyFeedback adjusts a user's fatigue level per the documented
// per-response deltas, clamped to [0,100], and updates preferred
// frequency where the response implies a change.
func (s *Store) ApplyFeedback(ctx context.Context, userID string, response FeedbackResponse) error {
	delta := fatigueDelta(response)

	_, err := s.db.ExecContext(ctx, `
		UPDATE user_metrics
		SET notification_fatigue_level = GREATEST(0, LEAST(100, notification_fatigue_level + $1))
		WHERE user_id = $2
	`, delta, userID)
	if err != nil {
		return fmt.Errorf("applying notification feedback: %w", err)
	}

	if target := frequencyFor(response); target != "" {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE user_metrics SET preferred_notification_frequency = $1 WHERE user_id = $2`,
			target, userID,
		); err != nil {
			return fmt.Errorf("updating preferred frequency: %w", err)
		}
	}
	return nil
}

// FeedbackCandidate identifies a user due for a feedback prompt.
type FeedbackCandidate struct {
	UserID string `db:"user_id"`
	OrgID  string `db:"org_id"`
}

// UsersDueForFeedback returns users that have received at least
// minNotifications since their last feedback prompt (or have never been
// asked) and whose last prompt, if any, is older than interval.
func (s *Store) UsersDueForFeedback(ctx context.Context, minNotifications int, interval time.Duration) ([]FeedbackCandidate, error) {
	var candidates []FeedbackCandidate
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT user_id, org_id FROM user_metrics
		WHERE notifications_since_last_feedback >= $1
		  AND (last_feedback_requested_at IS NULL OR last_feedback_requested_at < $2)
	`, minNotifications, time.Now().Add(-interval))
	if err != nil {
		return nil, fmt.Errorf("selecting users due for feedback: %w", err)
	}
	return candidates, nil
}

// InsertInAppNotification implements channels.InAppStore.
func (s *Store) InsertInAppNotification(ctx context.Context, userID, orgID, notificationType string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO in_app_notifications (user_id, org_id, notification_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, orgID, notificationType, payload, time.Now())
	if err != nil {
		return fmt.Errorf("inserting in-app notification: %w", err)
	}
	return nil
}

func fatigueDelta(response FeedbackResponse) int {
	switch response {
	case FeedbackNotHelpful:
		return 10
	case FeedbackLess:
		return 30
	case FeedbackHelpful:
		return -5
	case FeedbackMore:
		return -20
	default:
		return 0
	}
}

func frequencyFor(response FeedbackResponse) PreferredFrequency {
	switch response {
	case FeedbackLess:
		return FrequencyLow
	case FeedbackMore:
		return FrequencyHigh
	default:
		return ""
	}
}
