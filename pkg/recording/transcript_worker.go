package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/externalclients/meetingbot"
)

const transcriptFetchBatchSize = 10

// maxTranscriptFetchAttempts bounds retries before a recording's transcript
// fetch is abandoned; the underlying provider 404 is not itself a failure,
// only repeated 404s past this count are treated as one.
const maxTranscriptFetchAttempts = 20

// TranscriptFetcher fetches a finished meeting's transcript from the bot
// provider. A 404 means "not yet available", distinct from a hard failure.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, orgID, botID string) (transcript string, err error)
}

// TranscriptFetchStore is the subset of Store used by TranscriptFetchWorker.
type TranscriptFetchStore interface {
	ClaimTranscriptFetchBatch(ctx context.Context, limit int) ([]Recording, error)
	GetBotDeploymentForRecording(ctx context.Context, recordingID string) (*BotDeployment, error)
	RecordTranscriptAttempt(ctx context.Context, id string) error
	RecordTranscriptSuccess(ctx context.Context, id, transcript string) error
	UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error
}

// TranscriptFetchWorker polls recordings missing a transcript and attempts
// to fetch one from the provider.
type TranscriptFetchWorker struct {
	store   TranscriptFetchStore
	fetcher TranscriptFetcher
}

// NewTranscriptFetchWorker builds a TranscriptFetchWorker.
func NewTranscriptFetchWorker(store TranscriptFetchStore, fetcher TranscriptFetcher) *TranscriptFetchWorker {
	return &TranscriptFetchWorker{store: store, fetcher: fetcher}
}

// Tick claims and attempts one batch of pending transcript fetches.
func (w *TranscriptFetchWorker) Tick(ctx context.Context) (TickResult, error) {
	batch, err := w.store.ClaimTranscriptFetchBatch(ctx, transcriptFetchBatchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("claiming transcript fetch batch: %w", err)
	}

	result := TickResult{Claimed: len(batch)}
	for _, rec := range batch {
		if err := w.processOne(ctx, rec); err != nil {
			slog.Error("transcript fetch attempt failed", "recording_id", rec.ID, "error", err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

func (w *TranscriptFetchWorker) processOne(ctx context.Context, rec Recording) error {
	deployment, err := w.store.GetBotDeploymentForRecording(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("resolving bot deployment: %w", err)
	}

	// Increment before the attempt so a crash mid-fetch still counts.
	if err := w.store.RecordTranscriptAttempt(ctx, rec.ID); err != nil {
		return err
	}

	transcript, err := w.fetcher.FetchTranscript(ctx, rec.OrgID, deployment.BotID)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindNotFound {
			if rec.TranscriptFetchAttempts+1 >= maxTranscriptFetchAttempts {
				return w.store.UpdateRecordingStatus(ctx, rec.ID, RecordingFailed)
			}
			return nil // not yet available, retried next tick
		}
		return fmt.Errorf("fetching transcript: %w", err)
	}

	return w.store.RecordTranscriptSuccess(ctx, rec.ID, transcript)
}

// meetingbotTranscriptFetcher adapts meetingbot.Client to TranscriptFetcher.
type meetingbotTranscriptFetcher struct {
	client *meetingbot.Client
}

// NewMeetingBotTranscriptFetcher wraps a meetingbot.Client for use by
// TranscriptFetchWorker.
func NewMeetingBotTranscriptFetcher(client *meetingbot.Client) TranscriptFetcher {
	return meetingbotTranscriptFetcher{client: client}
}

func (f meetingbotTranscriptFetcher) FetchTranscript(ctx context.Context, orgID, botID string) (string, error) {
	resp, err := f.client.FetchTranscript(ctx, orgID, botID)
	if err != nil {
		return "", err
	}
	return resp.Transcript, nil
}
