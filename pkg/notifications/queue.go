package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/revloop/orchestrator/pkg/recording"
)

// QueueStore is the subset of Store used by Queue.
type QueueStore interface {
	Enqueue(ctx context.Context, n NewNotification) (string, error)
}

// Queue is the write side of the notification pipeline: the feedback loop,
// the internal enqueue endpoint, and RecordingReadyEnqueuer (recording
// completion) enqueue through here.
type Queue struct {
	store QueueStore
}

// NewQueue builds a Queue.
func NewQueue(store QueueStore) *Queue {
	return &Queue{store: store}
}

// Enqueue inserts a new pending notification. ScheduledFor defaults to now
// when zero.
func (q *Queue) Enqueue(ctx context.Context, n NewNotification) error {
	if n.ScheduledFor.IsZero() {
		n.ScheduledFor = time.Now()
	}
	_, err := q.store.Enqueue(ctx, n)
	return err
}

// RecordingStore is the subset of pkg/recording.Store used by
// RecordingReadyEnqueuer to resolve a recording's owning org and user.
type RecordingStore interface {
	GetRecording(ctx context.Context, id string) (*recording.Recording, error)
}

// RecordingReadyEnqueuer implements recording.NotificationEnqueuer,
// bridging MediaUploadWorker's completion hook to the notification queue
// without pkg/recording needing to know this package exists.
type RecordingReadyEnqueuer struct {
	queue      *Queue
	recordings RecordingStore
}

// NewRecordingReadyEnqueuer builds a RecordingReadyEnqueuer.
func NewRecordingReadyEnqueuer(queue *Queue, recordings RecordingStore) *RecordingReadyEnqueuer {
	return &RecordingReadyEnqueuer{queue: queue, recordings: recordings}
}

// EnqueueRecordingReady queues an in-app notification telling the
// recording's owner that their meeting recording finished processing.
func (e *RecordingReadyEnqueuer) EnqueueRecordingReady(ctx context.Context, recordingID string) error {
	rec, err := e.recordings.GetRecording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("resolving recording for notification: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"recording_id": rec.ID,
		"meeting_url":  rec.MeetingURL,
	})
	if err != nil {
		return fmt.Errorf("encoding recording-ready payload: %w", err)
	}

	return e.queue.Enqueue(ctx, NewNotification{
		UserID:           rec.UserID,
		OrgID:            rec.OrgID,
		NotificationType: "recording_ready",
		Channel:          ChannelInApp,
		Priority:         PriorityNormal,
		Payload:          payload,
	})
}
