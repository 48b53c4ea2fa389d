package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/revloop/orchestrator/pkg/externalclients/meetingbot"
	"github.com/revloop/orchestrator/pkg/externalclients/objectstore"
)

// mediaUploadBatchSize caps how many recordings a single tick claims, bounding worst
// case tick duration under load.
const mediaUploadBatchSize = 10

// MediaProvider fetches the raw recording bytes from the meeting-recorder
// bot's own storage, identified by the recording's owning BotDeployment.
type MediaProvider interface {
	FetchMedia(ctx context.Context, orgID, botID string) (contentType string, size int64, body io.ReadCloser, err error)
}

// ObjectUploader uploads recording media and returns a fetchable URL.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (*objectstore.UploadResult, error)
}

// ThumbnailGenerator derives a preview image from uploaded recording media.
// No library in the teacher's or the pack's dependency set does image or
// video frame extraction, so this stays an interface with no production
// implementation here; wiring a real one is future work for whichever
// package owns thumbnail storage.
type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, recordingID, storagePath string) error
}

// NotificationEnqueuer notifies interested users once a recording is ready.
type NotificationEnqueuer interface {
	EnqueueRecordingReady(ctx context.Context, recordingID string) error
}

// TickResult summarizes one poller pass for logging/metrics.
type TickResult struct {
	Claimed   int
	Succeeded int
	Failed    int
}

// MediaUploadStore is the subset of Store used by MediaUploadWorker.
type MediaUploadStore interface {
	ClaimMediaUploadBatch(ctx context.Context, limit int) ([]Recording, error)
	GetBotDeploymentForRecording(ctx context.Context, recordingID string) (*BotDeployment, error)
	RecordMediaUploadSuccess(ctx context.Context, id, storagePath, presignedURL string) error
	RecordMediaUploadFailure(ctx context.Context, id string, permanent bool, reason string) error
	UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error
}

// MediaUploadWorker claims recordings whose bot has finished and uploads
// the provider's media to durable object storage. URLExpiry is exposed as
// a field (defaulting to mediaURLExpiry) so deployments can override the
// provider's advertised media URL lifetime without a code change.
type MediaUploadWorker struct {
	store      MediaUploadStore
	media      MediaProvider
	uploader   ObjectUploader
	URLExpiry  time.Duration
	Thumbnails ThumbnailGenerator
	Notifier   NotificationEnqueuer
}

// NewMediaUploadWorker builds a MediaUploadWorker with the default expiry.
func NewMediaUploadWorker(store MediaUploadStore, media MediaProvider, uploader ObjectUploader) *MediaUploadWorker {
	return &MediaUploadWorker{store: store, media: media, uploader: uploader, URLExpiry: mediaURLExpiry}
}

// Tick claims and attempts one batch of pending media uploads.
func (w *MediaUploadWorker) Tick(ctx context.Context) (TickResult, error) {
	batch, err := w.store.ClaimMediaUploadBatch(ctx, mediaUploadBatchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("claiming media upload batch: %w", err)
	}

	result := TickResult{Claimed: len(batch)}
	for _, rec := range batch {
		if err := w.processOne(ctx, rec); err != nil {
			slog.Error("media upload attempt failed", "recording_id", rec.ID, "error", err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

func (w *MediaUploadWorker) processOne(ctx context.Context, rec Recording) error {
	if rec.MediaUploadRetryCount > 0 {
		wait := mediaUploadBackoff[min(rec.MediaUploadRetryCount, len(mediaUploadBackoff)-1)]
		if rec.MediaUploadLastRetryAt != nil && time.Since(*rec.MediaUploadLastRetryAt) < wait {
			return nil // not yet eligible for retry, leave claimed state alone until next tick
		}
	}

	deployment, err := w.store.GetBotDeploymentForRecording(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("resolving bot deployment: %w", err)
	}

	if time.Since(deployment.CreatedAt) > w.URLExpiry {
		reason := "provider media URL expired before upload completed"
		if err := w.store.RecordMediaUploadFailure(ctx, rec.ID, true, reason); err != nil {
			return err
		}
		return errors.New(reason)
	}

	contentType, size, body, err := w.media.FetchMedia(ctx, rec.OrgID, deployment.BotID)
	if err != nil {
		permanent := rec.MediaUploadRetryCount+1 >= maxMediaUploadRetries
		_ = w.store.RecordMediaUploadFailure(ctx, rec.ID, permanent, err.Error())
		return fmt.Errorf("fetching provider media: %w", err)
	}
	defer body.Close()

	ext := extensionForContentType(contentType)
	key := fmt.Sprintf("meeting-recordings/%s/%s/%s/recording.%s", rec.OrgID, rec.UserID, rec.ID, ext)

	uploaded, err := w.uploader.Upload(ctx, key, contentType, body, size)
	if err != nil {
		permanent := rec.MediaUploadRetryCount+1 >= maxMediaUploadRetries
		_ = w.store.RecordMediaUploadFailure(ctx, rec.ID, permanent, err.Error())
		return fmt.Errorf("uploading to object storage: %w", err)
	}

	if err := w.store.RecordMediaUploadSuccess(ctx, rec.ID, uploaded.StoragePath, uploaded.PresignedURL); err != nil {
		return err
	}
	if err := w.store.UpdateRecordingStatus(ctx, rec.ID, RecordingReady); err != nil {
		return err
	}

	// Thumbnail generation and notification are side effects of a ready
	// recording, not preconditions for it: a failure here is logged, not
	// surfaced as an upload failure that would trigger a retry.
	if w.Thumbnails != nil {
		if err := w.Thumbnails.GenerateThumbnail(ctx, rec.ID, uploaded.StoragePath); err != nil {
			slog.Error("thumbnail generation failed", "recording_id", rec.ID, "error", err)
		}
	}
	if w.Notifier != nil {
		if err := w.Notifier.EnqueueRecordingReady(ctx, rec.ID); err != nil {
			slog.Error("enqueueing recording-ready notification failed", "recording_id", rec.ID, "error", err)
		}
	}
	return nil
}

// meetingbotMediaProvider adapts meetingbot.Client to MediaProvider.
type meetingbotMediaProvider struct {
	client *meetingbot.Client
}

// NewMeetingBotMediaProvider wraps a meetingbot.Client for use by
// MediaUploadWorker.
func NewMeetingBotMediaProvider(client *meetingbot.Client) MediaProvider {
	return meetingbotMediaProvider{client: client}
}

func (p meetingbotMediaProvider) FetchMedia(ctx context.Context, orgID, botID string) (string, int64, io.ReadCloser, error) {
	return p.client.FetchMedia(ctx, orgID, botID)
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "video/mp4":
		return "mp4"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	default:
		return "bin"
	}
}
