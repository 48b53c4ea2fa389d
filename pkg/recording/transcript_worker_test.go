package recording

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

type fakeTranscriptStore struct {
	batch       []Recording
	deployments map[string]*BotDeployment
	attempts    []string
	successes   map[string]string
	statuses    []RecordingStatus
}

func (f *fakeTranscriptStore) ClaimTranscriptFetchBatch(ctx context.Context, limit int) ([]Recording, error) {
	return f.batch, nil
}
func (f *fakeTranscriptStore) GetBotDeploymentForRecording(ctx context.Context, recordingID string) (*BotDeployment, error) {
	return f.deployments[recordingID], nil
}
func (f *fakeTranscriptStore) RecordTranscriptAttempt(ctx context.Context, id string) error {
	f.attempts = append(f.attempts, id)
	return nil
}
func (f *fakeTranscriptStore) RecordTranscriptSuccess(ctx context.Context, id, transcript string) error {
	if f.successes == nil {
		f.successes = map[string]string{}
	}
	f.successes[id] = transcript
	return nil
}
func (f *fakeTranscriptStore) UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeTranscriptFetcher struct {
	transcript string
	err        error
}

func (f fakeTranscriptFetcher) FetchTranscript(ctx context.Context, orgID, botID string) (string, error) {
	return f.transcript, f.err
}

func TestTranscriptFetchWorkerStoresTranscriptOnSuccess(t *testing.T) {
	store := &fakeTranscriptStore{
		batch:       []Recording{{ID: "rec-1", OrgID: "org-1"}},
		deployments: map[string]*BotDeployment{"rec-1": {BotID: "bot-1"}},
	}
	w := NewTranscriptFetchWorker(store, fakeTranscriptFetcher{transcript: "hello world"})

	result, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Claimed: 1, Succeeded: 1}, result)
	assert.Equal(t, []string{"rec-1"}, store.attempts)
	assert.Equal(t, "hello world", store.successes["rec-1"])
}

func TestTranscriptFetchWorkerTreats404AsRetryNotFailure(t *testing.T) {
	store := &fakeTranscriptStore{
		batch:       []Recording{{ID: "rec-1", OrgID: "org-1", TranscriptFetchAttempts: 1}},
		deployments: map[string]*BotDeployment{"rec-1": {BotID: "bot-1"}},
	}
	notFound := apperrors.New(apperrors.KindNotFound, "transcript not ready")
	w := NewTranscriptFetchWorker(store, fakeTranscriptFetcher{err: notFound})

	result, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Claimed: 1, Succeeded: 1}, result)
	assert.Empty(t, store.statuses)
}

func TestTranscriptFetchWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	store := &fakeTranscriptStore{
		batch:       []Recording{{ID: "rec-1", OrgID: "org-1", TranscriptFetchAttempts: maxTranscriptFetchAttempts - 1}},
		deployments: map[string]*BotDeployment{"rec-1": {BotID: "bot-1"}},
	}
	notFound := apperrors.New(apperrors.KindNotFound, "transcript not ready")
	w := NewTranscriptFetchWorker(store, fakeTranscriptFetcher{err: notFound})

	result, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Claimed: 1, Succeeded: 1}, result)
	assert.Equal(t, []RecordingStatus{RecordingFailed}, store.statuses)
}
