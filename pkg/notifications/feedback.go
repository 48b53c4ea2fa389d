package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// feedbackInterval and feedbackMinNotifications gate how often a user is
// asked for feedback: every 14 days, and only once at least 10
// notifications have landed since the last prompt.
const (
	feedbackInterval         = 14 * 24 * time.Hour
	feedbackMinNotifications = 10
)

// FeedbackStore is the subset of Store used by FeedbackLoop.
type FeedbackStore interface {
	UsersDueForFeedback(ctx context.Context, minNotifications int, interval time.Duration) ([]FeedbackCandidate, error)
	MarkFeedbackRequested(ctx context.Context, userID string) error
	ApplyFeedback(ctx context.Context, userID string, response FeedbackResponse) error
}

// FeedbackLoop periodically queues a feedback prompt for users who have
// received enough notifications since their last one, and later applies
// the user's response to their fatigue level and preferred frequency.
type FeedbackLoop struct {
	store FeedbackStore
	queue *Queue
}

// NewFeedbackLoop builds a FeedbackLoop.
func NewFeedbackLoop(store FeedbackStore, queue *Queue) *FeedbackLoop {
	return &FeedbackLoop{store: store, queue: queue}
}

// Tick queues a feedback notification for every user currently due.
func (f *FeedbackLoop) Tick(ctx context.Context) (int, error) {
	candidates, err := f.store.UsersDueForFeedback(ctx, feedbackMinNotifications, feedbackInterval)
	if err != nil {
		return 0, fmt.Errorf("selecting users due for feedback: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"title": "How are we doing?",
		"text":  "Quick check-in: how are our notifications working for you?",
	})
	if err != nil {
		return 0, fmt.Errorf("encoding feedback payload: %w", err)
	}

	queued := 0
	for _, c := range candidates {
		if err := f.queue.Enqueue(ctx, NewNotification{
			UserID:           c.UserID,
			OrgID:            c.OrgID,
			NotificationType: "feedback_prompt",
			Channel:          ChannelInApp,
			Priority:         PriorityLow,
			Payload:          payload,
		}); err != nil {
			return queued, fmt.Errorf("enqueueing feedback prompt for user %s: %w", c.UserID, err)
		}
		if err := f.store.MarkFeedbackRequested(ctx, c.UserID); err != nil {
			return queued, fmt.Errorf("marking feedback requested for user %s: %w", c.UserID, err)
		}
		queued++
	}
	return queued, nil
}

// ApplyFeedback records a user's response to a feedback prompt, adjusting
// their fatigue level and preferred frequency per the documented deltas.
func (f *FeedbackLoop) ApplyFeedback(ctx context.Context, userID string, response FeedbackResponse) error {
	return f.store.ApplyFeedback(ctx, userID, response)
}
