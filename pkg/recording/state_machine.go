package recording

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// DeploymentStore is the subset of Store used by StateMachine, narrowed so
// the state machine can be tested without a database.
type DeploymentStore interface {
	GetBotDeploymentByBotID(ctx context.Context, botID string) (*BotDeployment, error)
	TransitionBotDeployment(ctx context.Context, id string, next BotDeploymentStatus, detail string) error
	UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error
}

// StateMachine applies bot lifecycle webhook events to bot_deployments,
// validating every transition against validBotTransitions and cascading
// terminal states into the owning Recording. It implements
// sources.BotDeploymentHandler.
type StateMachine struct {
	store    DeploymentStore
	enqueuer MediaUploadEnqueuer
}

// MediaUploadEnqueuer is notified when a recording becomes eligible for its
// media upload. In this design the media-upload worker polls for pending
// rows itself, so the only action needed here is flipping the recording's
// media_upload_status to pending — this interface exists so a future
// push-based enqueue (e.g. a job broker) can replace the poll without
// touching the state machine.
type MediaUploadEnqueuer interface {
	EnqueueMediaUpload(ctx context.Context, recordingID string) error
}

// NewStateMachine builds a StateMachine.
func NewStateMachine(store DeploymentStore, enqueuer MediaUploadEnqueuer) *StateMachine {
	return &StateMachine{store: store, enqueuer: enqueuer}
}

// HandleBotEvent implements sources.BotDeploymentHandler.
func (m *StateMachine) HandleBotEvent(ctx context.Context, ev sources.BotEvent) error {
	deployment, err := m.store.GetBotDeploymentByBotID(ctx, ev.BotID)
	if err != nil {
		return fmt.Errorf("resolving bot deployment for event: %w", err)
	}

	next, err := mapEventToStatus(ev)
	if err != nil {
		return err
	}

	if deployment.Status.isTerminal() {
		slog.Warn("bot event received for terminal deployment, ignoring",
			"bot_deployment_id", deployment.ID, "current_status", deployment.Status, "event_status", ev.Status)
		return nil
	}

	if !isValidTransition(deployment.Status, next) {
		return apperrors.New(apperrors.KindConflict,
			fmt.Sprintf("invalid bot deployment transition %s -> %s", deployment.Status, next))
	}

	detail := ev.Error
	if err := m.store.TransitionBotDeployment(ctx, deployment.ID, next, detail); err != nil {
		return fmt.Errorf("transitioning bot deployment: %w", err)
	}

	switch next {
	case BotStatusCompleted:
		return m.onCompleted(ctx, deployment.RecordingID)
	case BotStatusFailed:
		return m.store.UpdateRecordingStatus(ctx, deployment.RecordingID, RecordingFailed)
	case BotStatusCancelled:
		return m.store.UpdateRecordingStatus(ctx, deployment.RecordingID, RecordingFailed)
	case BotStatusInMeeting:
		return m.store.UpdateRecordingStatus(ctx, deployment.RecordingID, RecordingRecording)
	case BotStatusJoining:
		return m.store.UpdateRecordingStatus(ctx, deployment.RecordingID, RecordingBotJoining)
	}
	return nil
}

func (m *StateMachine) onCompleted(ctx context.Context, recordingID string) error {
	if err := m.store.UpdateRecordingStatus(ctx, recordingID, RecordingProcessing); err != nil {
		return fmt.Errorf("marking recording processing: %w", err)
	}
	if err := m.enqueuer.EnqueueMediaUpload(ctx, recordingID); err != nil {
		return fmt.Errorf("enqueuing media upload: %w", err)
	}
	return nil
}

func isValidTransition(from, to BotDeploymentStatus) bool {
	for _, allowed := range validBotTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// mapEventToStatus translates a provider's free-text status string into a
// BotDeploymentStatus. Providers use their own vocabulary for the same
// lifecycle stages; this table is the canonicalization point.
func mapEventToStatus(ev sources.BotEvent) (BotDeploymentStatus, error) {
	if ev.Error != "" {
		return BotStatusFailed, nil
	}
	switch ev.Status {
	case "joining", "call_joining", "joining_call":
		return BotStatusJoining, nil
	case "in_call", "in_meeting", "recording", "in_call_recording", "in_call_not_recording":
		return BotStatusInMeeting, nil
	case "leaving", "call_ended", "ended":
		return BotStatusLeaving, nil
	case "done", "completed", "processed":
		return BotStatusCompleted, nil
	case "failed", "error", "bot_rejected", "bot_removed":
		return BotStatusFailed, nil
	case "cancelled", "canceled":
		return BotStatusCancelled, nil
	default:
		return "", apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("unrecognized bot status %q", ev.Status))
	}
}

// pollEnqueuer is the production MediaUploadEnqueuer: the media upload
// worker claims pending rows itself, so enqueue is just the status flip
// already performed by onCompleted via UpdateRecordingStatus plus marking
// the media upload column pending.
type pollEnqueuer struct {
	store *Store
}

// NewPollEnqueuer builds the poll-based enqueuer.
func NewPollEnqueuer(store *Store) MediaUploadEnqueuer {
	return &pollEnqueuer{store: store}
}

func (p *pollEnqueuer) EnqueueMediaUpload(ctx context.Context, recordingID string) error {
	_, err := p.store.db.ExecContext(ctx,
		`UPDATE recordings SET media_upload_status = $1 WHERE id = $2 AND media_upload_status = $3`,
		MediaUploadPending, recordingID, MediaUploadNotStarted)
	if err != nil {
		return fmt.Errorf("marking recording media upload pending: %w", err)
	}
	return nil
}
