// Package notifications implements the frequency-limited, fatigue-aware,
// multi-channel notification queue: enqueue, claim, frequency gating,
// channel dispatch, and the periodic feedback loop that tunes a user's
// preferred frequency and fatigue level.
package notifications

import (
	"encoding/json"
	"time"
)

// Priority orders delivery and gates frequency limits.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// priorityRank maps each priority to its rank, highest first.
var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// downgrade returns the next priority one step down, or the same priority
// if already at the bottom.
func (p Priority) downgrade() Priority {
	switch p {
	case PriorityUrgent:
		return PriorityHigh
	case PriorityHigh:
		return PriorityNormal
	case PriorityNormal:
		return PriorityLow
	default:
		return PriorityLow
	}
}

// Channel is the delivery surface for one notification.
type Channel string

const (
	ChannelSlackDM      Channel = "slack_dm"
	ChannelSlackChannel Channel = "slack_channel"
	ChannelEmail        Channel = "email"
	ChannelInApp        Channel = "in_app"
)

// Status is the lifecycle state of a queued notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusDelayed    Status = "delayed"
)

// PreferredFrequency is a user's self-selected target notification volume.
type PreferredFrequency string

const (
	FrequencyLow      PreferredFrequency = "low"
	FrequencyModerate PreferredFrequency = "moderate"
	FrequencyHigh     PreferredFrequency = "high"
)

// FeedbackResponse is a user's answer to a periodic feedback prompt.
type FeedbackResponse string

const (
	FeedbackNotHelpful FeedbackResponse = "not_helpful"
	FeedbackLess       FeedbackResponse = "less"
	FeedbackHelpful    FeedbackResponse = "helpful"
	FeedbackMore       FeedbackResponse = "more"
)

// NotificationQueueItem is one queued or delivered notification.
type NotificationQueueItem struct {
	ID               string          `db:"id"`
	UserID           string          `db:"user_id"`
	OrgID            string          `db:"org_id"`
	NotificationType string          `db:"notification_type"`
	Channel          Channel         `db:"channel"`
	Priority         Priority        `db:"priority"`
	Payload          json.RawMessage `db:"payload"`
	ScheduledFor     time.Time       `db:"scheduled_for"`
	OptimalSendTime  *time.Time      `db:"optimal_send_time"`
	Status           Status          `db:"status"`
	AttemptCount     int             `db:"attempt_count"`
	MaxAttempts      int             `db:"max_attempts"`
	LockedBy         *string         `db:"locked_by"`
	LockedAt         *time.Time      `db:"locked_at"`
	LastError        *string         `db:"last_error"`
	SentAt           *time.Time      `db:"sent_at"`
	CreatedAt        time.Time       `db:"created_at"`
}

// NotificationInteraction records one delivered notification and the
// user's engagement with it, used for fatigue/engagement scoring.
type NotificationInteraction struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	OrgID            string     `db:"org_id"`
	NotificationType string     `db:"notification_type"`
	DeliveredAt      time.Time  `db:"delivered_at"`
	DeliveredVia     Channel    `db:"delivered_via"`
	OpenedAt         *time.Time `db:"opened_at"`
	ClickedAt        *time.Time `db:"clicked_at"`
	DismissedAt      *time.Time `db:"dismissed_at"`
}

// UserMetrics tracks the per-user state the frequency limiter and feedback
// loop read and update.
type UserMetrics struct {
	UserID                          string             `db:"user_id"`
	OrgID                           string             `db:"org_id"`
	LastAppActiveAt                 *time.Time         `db:"last_app_active_at"`
	LastSlackActiveAt               *time.Time         `db:"last_slack_active_at"`
	PreferredNotificationFrequency  PreferredFrequency `db:"preferred_notification_frequency"`
	NotificationFatigueLevel        int                `db:"notification_fatigue_level"`
	OverallEngagementScore          int                `db:"overall_engagement_score"`
	NotificationsSinceLastFeedback  int                `db:"notifications_since_last_feedback"`
	LastFeedbackRequestedAt         *time.Time         `db:"last_feedback_requested_at"`
}

// NewNotification is the input to Queue.Enqueue.
type NewNotification struct {
	UserID           string
	OrgID            string
	NotificationType string
	Channel          Channel
	Priority         Priority
	Payload          json.RawMessage
	ScheduledFor     time.Time
	OptimalSendTime  *time.Time
	MaxAttempts      int
}
