package recording

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

type fakeDeploymentStore struct {
	deployment      *BotDeployment
	transitions     []BotDeploymentStatus
	recordingStatus []RecordingStatus
	transitionErr   error
}

func (f *fakeDeploymentStore) GetBotDeploymentByBotID(ctx context.Context, botID string) (*BotDeployment, error) {
	return f.deployment, nil
}

func (f *fakeDeploymentStore) TransitionBotDeployment(ctx context.Context, id string, next BotDeploymentStatus, detail string) error {
	if f.transitionErr != nil {
		return f.transitionErr
	}
	f.transitions = append(f.transitions, next)
	f.deployment.Status = next
	return nil
}

func (f *fakeDeploymentStore) UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error {
	f.recordingStatus = append(f.recordingStatus, status)
	return nil
}

type fakeEnqueuer struct{ enqueued []string }

func (f *fakeEnqueuer) EnqueueMediaUpload(ctx context.Context, recordingID string) error {
	f.enqueued = append(f.enqueued, recordingID)
	return nil
}

func TestHandleBotEventAdvancesThroughLifecycle(t *testing.T) {
	store := &fakeDeploymentStore{deployment: &BotDeployment{ID: "dep-1", RecordingID: "rec-1", Status: BotStatusScheduled}}
	enqueuer := &fakeEnqueuer{}
	m := NewStateMachine(store, enqueuer)

	require.NoError(t, m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "joining"}))
	require.NoError(t, m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "in_meeting"}))
	require.NoError(t, m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "call_ended"}))
	require.NoError(t, m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "completed"}))

	assert.Equal(t, []BotDeploymentStatus{BotStatusJoining, BotStatusInMeeting, BotStatusLeaving, BotStatusCompleted}, store.transitions)
	assert.Equal(t, []string{"rec-1"}, enqueuer.enqueued)
}

func TestHandleBotEventRejectsInvalidTransition(t *testing.T) {
	store := &fakeDeploymentStore{deployment: &BotDeployment{ID: "dep-1", RecordingID: "rec-1", Status: BotStatusScheduled}}
	m := NewStateMachine(store, &fakeEnqueuer{})

	err := m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "completed"})
	assert.Error(t, err)
	assert.Empty(t, store.transitions)
}

func TestHandleBotEventIgnoresEventsForTerminalDeployment(t *testing.T) {
	store := &fakeDeploymentStore{deployment: &BotDeployment{ID: "dep-1", RecordingID: "rec-1", Status: BotStatusCompleted}}
	m := NewStateMachine(store, &fakeEnqueuer{})

	err := m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "failed"})
	assert.NoError(t, err)
	assert.Empty(t, store.transitions)
}

func TestHandleBotEventMapsProviderErrorToFailed(t *testing.T) {
	store := &fakeDeploymentStore{deployment: &BotDeployment{ID: "dep-1", RecordingID: "rec-1", Status: BotStatusJoining}}
	m := NewStateMachine(store, &fakeEnqueuer{})

	require.NoError(t, m.HandleBotEvent(context.Background(), sources.BotEvent{BotID: "bot-1", Status: "in_meeting", Error: "bot crashed"}))
	assert.Equal(t, []BotDeploymentStatus{BotStatusFailed}, store.transitions)
	assert.Equal(t, []RecordingStatus{RecordingFailed}, store.recordingStatus)
}
