package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/notifications"
	"github.com/revloop/orchestrator/pkg/sequence"
)

const defaultNotificationMaxAttempts = 3

// enqueueNotificationHandler handles POST /internal/enqueue_notification.
// Called by the notification dispatcher's own callers and by cron for
// scheduled digests; always returns immediately, delivery happens async.
func (s *Server) enqueueNotificationHandler(c *echo.Context) error {
	var req enqueueNotificationRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperrors.Wrap(apperrors.KindBadRequest, err, "decoding request body"))
	}
	if req.UserID == "" || req.Channel == "" || req.Type == "" {
		return mapError(apperrors.New(apperrors.KindBadRequest, "user_id, channel, and type are required"))
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return mapError(apperrors.Wrap(apperrors.KindBadRequest, err, "encoding payload"))
	}

	scheduledFor := time.Now().UTC()
	if req.ScheduledFor != nil {
		parsed, err := time.Parse(time.RFC3339, *req.ScheduledFor)
		if err != nil {
			return mapError(apperrors.Wrap(apperrors.KindBadRequest, err, "parsing scheduled_for"))
		}
		scheduledFor = parsed
	}

	priority := notifications.Priority(req.Priority)
	if priority == "" {
		priority = notifications.PriorityNormal
	}

	n := notifications.NewNotification{
		UserID:           req.UserID,
		Channel:          notifications.Channel(req.Channel),
		NotificationType: req.Type,
		Priority:         priority,
		Payload:          payload,
		ScheduledFor:     scheduledFor,
		MaxAttempts:      defaultNotificationMaxAttempts,
	}

	if err := s.notifQueue.Enqueue(c.Request().Context(), n); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, queuedResponse{Status: "queued"})
}

// enqueueMediaUploadHandler handles POST /internal/enqueue_media_upload.
// Triggers an out-of-band upload attempt for a recording outside the
// normal bot-completion flow, e.g. a manual retry from an operator tool.
func (s *Server) enqueueMediaUploadHandler(c *echo.Context) error {
	var req enqueueMediaUploadRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperrors.Wrap(apperrors.KindBadRequest, err, "decoding request body"))
	}
	if req.RecordingID == "" {
		return mapError(apperrors.New(apperrors.KindBadRequest, "recording_id is required"))
	}

	if err := s.mediaUploads.MarkMediaUploadPending(c.Request().Context(), req.RecordingID); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, queuedResponse{Status: "queued"})
}

// enqueueSequenceHandler handles POST /internal/enqueue_sequence. The
// execution row is created synchronously so its id can be returned to the
// caller; the sequence itself then runs in the background so this endpoint
// never blocks on skill calls.
func (s *Server) enqueueSequenceHandler(c *echo.Context) error {
	var req enqueueSequenceRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperrors.Wrap(apperrors.KindBadRequest, err, "decoding request body"))
	}
	if req.OrgID == "" || req.UserID == "" || req.SequenceKey == "" {
		return mapError(apperrors.New(apperrors.KindBadRequest, "org_id, user_id, and sequence_key are required"))
	}

	exec := sequence.Execution{
		OrgID:        req.OrgID,
		UserID:       req.UserID,
		SequenceKey:  req.SequenceKey,
		Context:      req.Context,
		IsSimulation: req.IsSimulation,
	}

	id, err := s.seqStarter.StartExecution(c.Request().Context(), exec)
	if err != nil {
		return mapError(err)
	}
	exec.ID = id

	go func() {
		// Detached from the request context: the HTTP response has already
		// been written by the time this runs.
		if err := s.seqRunner.Execute(context.Background(), exec); err != nil {
			slog.Error("sequence execution failed", "execution_id", id, "sequence_key", exec.SequenceKey, "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, sequenceQueuedResponse{ExecutionID: id, Status: "running"})
}
