package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// Store persists bot deployments and recordings.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetBotDeploymentByBotID fetches a deployment by the provider's bot id,
// the only identifier carried on lifecycle webhook events.
func (s *Store) GetBotDeploymentByBotID(ctx context.Context, botID string) (*BotDeployment, error) {
	var out BotDeployment
	err := s.db.GetContext(ctx, &out, `
		SELECT id, org_id, recording_id, bot_id, status, scheduled_join_time,
		       actual_join_time, leave_time, error_code, error_message, created_at
		FROM bot_deployments WHERE bot_id = $1`, botID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "bot deployment not found")
		}
		return nil, fmt.Errorf("fetching bot deployment: %w", err)
	}
	return &out, nil
}

// TransitionBotDeployment atomically updates status (guarded by the
// caller's validity check) and appends a status-history row in the same
// transaction, keeping the append-only log consistent with the current
// status column.
func (s *Store) TransitionBotDeployment(ctx context.Context, id string, next BotDeploymentStatus, detail string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	update := `UPDATE bot_deployments SET status = $1`
	args := []any{next, id}
	switch next {
	case BotStatusInMeeting:
		update = `UPDATE bot_deployments SET status = $1, actual_join_time = $3`
		args = []any{next, id, now}
	case BotStatusCompleted, BotStatusFailed, BotStatusCancelled:
		update = `UPDATE bot_deployments SET status = $1, leave_time = $3`
		args = []any{next, id, now}
	}
	update += ` WHERE id = $2`
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return fmt.Errorf("updating bot deployment status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bot_deployment_status_history (bot_deployment_id, status, occurred_at, detail) VALUES ($1, $2, $3, $4)`,
		id, next, now, nullIfEmpty(detail)); err != nil {
		return fmt.Errorf("appending status history: %w", err)
	}

	return tx.Commit()
}

// GetRecording fetches a recording by id.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var out Recording
	err := s.db.GetContext(ctx, &out, `
		SELECT id, org_id, user_id, meeting_platform, meeting_url, calendar_event_id,
		       status, media_storage_url, media_storage_path, media_upload_status,
		       media_upload_retry_count, media_upload_last_retry_at, transcript,
		       transcript_fetch_attempts, last_transcript_fetch_at, error_message, created_at
		FROM recordings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "recording not found")
		}
		return nil, fmt.Errorf("fetching recording: %w", err)
	}
	return &out, nil
}

// UpdateRecordingStatus sets the overall recording status.
func (s *Store) UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recordings SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("updating recording status: %w", err)
	}
	return nil
}

// MarkMediaUploadPending queues a recording for the next media-upload
// tick. Used by the internal enqueue_media_upload entry point to trigger
// an upload attempt outside the normal bot-completion flow.
func (s *Store) MarkMediaUploadPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET media_upload_status = $1 WHERE id = $2`,
		MediaUploadPending, id,
	)
	if err != nil {
		return fmt.Errorf("marking media upload pending: %w", err)
	}
	return nil
}

// ClaimMediaUploadBatch atomically claims up to limit recordings eligible
// for a media-upload attempt (pending, or failed with retries remaining),
// FIFO by created_at. FOR UPDATE SKIP LOCKED lets multiple worker
// instances poll concurrently without claiming the same row twice.
func (s *Store) ClaimMediaUploadBatch(ctx context.Context, limit int) ([]Recording, error) {
	rows, err := s.db.QueryxContext(ctx, `
		WITH claimed AS (
			SELECT id FROM recordings
			WHERE media_upload_status = $1
			   OR (media_upload_status = $2 AND media_upload_retry_count < $3)
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE recordings SET media_upload_status = $5
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, org_id, user_id, meeting_platform, meeting_url, calendar_event_id,
		          status, media_storage_url, media_storage_path, media_upload_status,
		          media_upload_retry_count, media_upload_last_retry_at, transcript,
		          transcript_fetch_attempts, last_transcript_fetch_at, error_message, created_at
	`, MediaUploadPending, MediaUploadFailed, maxMediaUploadRetries, limit, MediaUploadInProgress)
	if err != nil {
		return nil, fmt.Errorf("claiming media upload batch: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scanning claimed recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordMediaUploadSuccess stores the final storage location.
func (s *Store) RecordMediaUploadSuccess(ctx context.Context, id, storagePath, presignedURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recordings SET media_upload_status = $1, media_storage_path = $2, media_storage_url = $3
		WHERE id = $4`, MediaUploadComplete, storagePath, presignedURL, id)
	if err != nil {
		return fmt.Errorf("recording media upload success: %w", err)
	}
	return nil
}

// RecordMediaUploadFailure increments the retry counter or, when
// permanent is true (e.g. URL expiry), marks the upload terminally failed:
// the retry counter is raised to at least maxMediaUploadRetries so
// ClaimMediaUploadBatch never claims the row again.
func (s *Store) RecordMediaUploadFailure(ctx context.Context, id string, permanent bool, reason string) error {
	status := MediaUploadPending
	minRetryCount := 0
	if permanent {
		status = MediaUploadFailed
		minRetryCount = maxMediaUploadRetries
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE recordings
		SET media_upload_status = $1, media_upload_retry_count = GREATEST(media_upload_retry_count + 1, $5),
		    media_upload_last_retry_at = $2, error_message = $3
		WHERE id = $4`, status, time.Now(), reason, id, minRetryCount)
	if err != nil {
		return fmt.Errorf("recording media upload failure: %w", err)
	}
	return nil
}

// GetBotDeploymentForRecording fetches the deployment owning a recording,
// needed by the media-upload worker to check URL expiry against
// created_at.
func (s *Store) GetBotDeploymentForRecording(ctx context.Context, recordingID string) (*BotDeployment, error) {
	var out BotDeployment
	err := s.db.GetContext(ctx, &out, `
		SELECT id, org_id, recording_id, bot_id, status, scheduled_join_time,
		       actual_join_time, leave_time, error_code, error_message, created_at
		FROM bot_deployments WHERE recording_id = $1`, recordingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "bot deployment not found for recording")
		}
		return nil, fmt.Errorf("fetching bot deployment for recording: %w", err)
	}
	return &out, nil
}

// ClaimTranscriptFetchBatch claims recordings with no transcript yet,
// ready to attempt a fetch.
func (s *Store) ClaimTranscriptFetchBatch(ctx context.Context, limit int) ([]Recording, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, org_id, user_id, meeting_platform, meeting_url, calendar_event_id,
		       status, media_storage_url, media_storage_path, media_upload_status,
		       media_upload_retry_count, media_upload_last_retry_at, transcript,
		       transcript_fetch_attempts, last_transcript_fetch_at, error_message, created_at
		FROM recordings
		WHERE transcript IS NULL AND status != $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, RecordingFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming transcript fetch batch: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scanning claimed recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordTranscriptAttempt increments the attempt counter before the fetch
// is made, so a worker crash mid-fetch still counts against the limit.
func (s *Store) RecordTranscriptAttempt(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recordings SET transcript_fetch_attempts = transcript_fetch_attempts + 1, last_transcript_fetch_at = $1
		WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("recording transcript attempt: %w", err)
	}
	return nil
}

// RecordTranscriptSuccess stores the fetched transcript.
func (s *Store) RecordTranscriptSuccess(ctx context.Context, id, transcript string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recordings SET transcript = $1 WHERE id = $2`, transcript, id)
	if err != nil {
		return fmt.Errorf("recording transcript success: %w", err)
	}
	return nil
}

// CountBotDeploymentsThisMonth returns orgID's bot deployment count for the
// calendar month containing now, used by the quota check.
func (s *Store) CountBotDeploymentsThisMonth(ctx context.Context, orgID string, now time.Time) (int, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bot_deployments WHERE org_id = $1 AND created_at >= $2`, orgID, monthStart)
	if err != nil {
		return 0, fmt.Errorf("counting monthly bot deployments: %w", err)
	}
	return count, nil
}

// CreateBotDeployment creates the owning Recording row and its
// BotDeployment in one transaction, the entry point for auto-scheduled
// bot joins.
func (s *Store) CreateBotDeployment(ctx context.Context, orgID, userID, botID string, ev sources.MeetingEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var recordingID string
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO recordings (org_id, user_id, meeting_platform, meeting_url, calendar_event_id, status, media_upload_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		orgID, userID, ev.Platform, ev.MeetingURL, nullIfEmpty(ev.CalendarEventID), RecordingPending, MediaUploadNotStarted,
	).Scan(&recordingID)
	if err != nil {
		return fmt.Errorf("creating recording: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bot_deployments (org_id, recording_id, bot_id, status, scheduled_join_time)
		VALUES ($1, $2, $3, $4, $5)`,
		orgID, recordingID, botID, BotStatusScheduled, time.Now()); err != nil {
		return fmt.Errorf("creating bot deployment: %w", err)
	}

	return tx.Commit()
}

// LoadRecordingRules implements RuleStore, loading orgID's enabled
// auto-scheduling rules ordered by priority descending (the partial index
// on enabled rows already sorts this way, ORDER BY here documents the
// contract rather than relying on index scan order).
func (s *Store) LoadRecordingRules(ctx context.Context, orgID string) ([]RecordingRule, error) {
	var rules []RecordingRule
	err := s.db.SelectContext(ctx, &rules, `
		SELECT id, org_id, priority, enabled, title_exclude_keywords, title_include_keywords,
		       min_attendees, max_attendees, domain_mode, allowed_domains, target, test_mode
		FROM recording_rules
		WHERE org_id = $1 AND enabled
		ORDER BY priority DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("loading recording rules: %w", err)
	}
	return rules, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
