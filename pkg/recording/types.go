// Package recording implements the bot-deployment state machine, the
// media-upload and transcript-fetch workers, and recording auto-scheduling
// rule evaluation.
package recording

import "time"

// BotDeploymentStatus is one state in the bot lifecycle. Transitions are
// driven exclusively by webhook events from the meeting-recording
// provider — never advanced by a client request.
type BotDeploymentStatus string

const (
	BotStatusScheduled BotDeploymentStatus = "scheduled"
	BotStatusJoining   BotDeploymentStatus = "joining"
	BotStatusInMeeting BotDeploymentStatus = "in_meeting"
	BotStatusLeaving   BotDeploymentStatus = "leaving"
	BotStatusCompleted BotDeploymentStatus = "completed"
	BotStatusFailed    BotDeploymentStatus = "failed"
	BotStatusCancelled BotDeploymentStatus = "cancelled"
)

func (s BotDeploymentStatus) isTerminal() bool {
	switch s {
	case BotStatusCompleted, BotStatusFailed, BotStatusCancelled:
		return true
	default:
		return false
	}
}

// validBotTransitions enumerates the legal next states from each status.
// Cancellation is reachable from any non-terminal state.
var validBotTransitions = map[BotDeploymentStatus][]BotDeploymentStatus{
	BotStatusScheduled: {BotStatusJoining, BotStatusFailed, BotStatusCancelled},
	BotStatusJoining:   {BotStatusInMeeting, BotStatusFailed, BotStatusCancelled},
	BotStatusInMeeting: {BotStatusLeaving, BotStatusFailed, BotStatusCancelled},
	BotStatusLeaving:   {BotStatusCompleted, BotStatusFailed, BotStatusCancelled},
}

// BotDeployment tracks one bot's join-through-completion lifecycle.
type BotDeployment struct {
	ID                string              `db:"id"`
	OrgID             string              `db:"org_id"`
	RecordingID       string              `db:"recording_id"`
	BotID             string              `db:"bot_id"`
	Status            BotDeploymentStatus `db:"status"`
	ScheduledJoinTime time.Time           `db:"scheduled_join_time"`
	ActualJoinTime    *time.Time          `db:"actual_join_time"`
	LeaveTime         *time.Time          `db:"leave_time"`
	ErrorCode         *string             `db:"error_code"`
	ErrorMessage      *string             `db:"error_message"`
	CreatedAt         time.Time           `db:"created_at"`
}

// MediaUploadStatus tracks the post-processing media upload.
type MediaUploadStatus string

const (
	MediaUploadNotStarted MediaUploadStatus = "not_started"
	MediaUploadPending    MediaUploadStatus = "pending"
	MediaUploadInProgress MediaUploadStatus = "in_progress"
	MediaUploadComplete   MediaUploadStatus = "complete"
	MediaUploadFailed     MediaUploadStatus = "failed"
)

// RecordingStatus is the overall Recording lifecycle status.
type RecordingStatus string

const (
	RecordingPending    RecordingStatus = "pending"
	RecordingBotJoining RecordingStatus = "bot_joining"
	RecordingRecording  RecordingStatus = "recording"
	RecordingProcessing RecordingStatus = "processing"
	RecordingReady      RecordingStatus = "ready"
	RecordingFailed     RecordingStatus = "failed"
)

// Recording is one recorded meeting and its post-processing pipeline state.
type Recording struct {
	ID                       string            `db:"id"`
	OrgID                    string            `db:"org_id"`
	UserID                   string            `db:"user_id"`
	MeetingPlatform          string            `db:"meeting_platform"`
	MeetingURL               string            `db:"meeting_url"`
	CalendarEventID          *string           `db:"calendar_event_id"`
	Status                   RecordingStatus   `db:"status"`
	MediaStorageURL          *string           `db:"media_storage_url"`
	MediaStoragePath         *string           `db:"media_storage_path"`
	MediaUploadStatus        MediaUploadStatus `db:"media_upload_status"`
	MediaUploadRetryCount    int               `db:"media_upload_retry_count"`
	MediaUploadLastRetryAt   *time.Time        `db:"media_upload_last_retry_at"`
	Transcript               *string           `db:"transcript"`
	TranscriptFetchAttempts  int               `db:"transcript_fetch_attempts"`
	LastTranscriptFetchAt    *time.Time        `db:"last_transcript_fetch_at"`
	ErrorMessage             *string           `db:"error_message"`
	CreatedAt                time.Time         `db:"created_at"`
}

// mediaUploadBackoff is the minimum wait after attempts 1, 2, 3
// respectively, indexed by retry_count (0-based: retry_count=1 means one
// attempt has already failed).
var mediaUploadBackoff = []time.Duration{
	0,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// mediaURLExpiry is how long after BotDeployment.created_at a provider's
// media URL remains fetchable. Spec names this as a fixed 4 hours but
// flags it as something that should be configurable rather than
// hardcoded; it is threaded through as a MediaUploadWorker field (see
// media_upload_worker.go) defaulting to this constant rather than buried
// inline in the retry check.
const mediaURLExpiry = 4 * time.Hour

// maxMediaUploadRetries bounds automatic retries before a recording's media
// upload is abandoned as permanently failed.
const maxMediaUploadRetries = 3
