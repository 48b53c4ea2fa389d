package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/notifications"
	"github.com/revloop/orchestrator/pkg/sequence"
)

type fakeNotificationQueue struct {
	mu   sync.Mutex
	last notifications.NewNotification
	err  error
}

func (f *fakeNotificationQueue) Enqueue(ctx context.Context, n notifications.NewNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.last = n
	return nil
}

type fakeMediaUploadQueuer struct {
	markedID string
	err      error
}

func (f *fakeMediaUploadQueuer) MarkMediaUploadPending(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.markedID = id
	return nil
}

type fakeSeqStarter struct {
	id string
}

func (f *fakeSeqStarter) StartExecution(ctx context.Context, exec sequence.Execution) (string, error) {
	return f.id, nil
}

type fakeSeqRunner struct {
	mu   sync.Mutex
	ran  bool
	done chan struct{}
}

func newFakeSeqRunner() *fakeSeqRunner {
	return &fakeSeqRunner{done: make(chan struct{}, 1)}
}

func (f *fakeSeqRunner) Execute(ctx context.Context, exec sequence.Execution) error {
	f.mu.Lock()
	f.ran = true
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func postJSON(e *echo.Echo, path, body string) (*httptest.ResponseRecorder, *echo.Context) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestEnqueueNotificationHandlerQueuesAndDefaultsPriority(t *testing.T) {
	queue := &fakeNotificationQueue{}
	s := &Server{echo: echo.New(), notifQueue: queue}

	rec, c := postJSON(s.echo, "/internal/enqueue_notification", `{
		"user_id": "user-1", "channel": "slack_dm", "type": "deal_reminder", "payload": {"deal_id": "d1"}
	}`)

	require.NoError(t, s.enqueueNotificationHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, notifications.PriorityNormal, queue.last.Priority)
	assert.Equal(t, "user-1", queue.last.UserID)
}

func TestEnqueueNotificationHandlerRejectsMissingFields(t *testing.T) {
	s := &Server{echo: echo.New(), notifQueue: &fakeNotificationQueue{}}

	rec, c := postJSON(s.echo, "/internal/enqueue_notification", `{"user_id": "user-1"}`)

	err := s.enqueueNotificationHandler(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	_ = rec
}

func TestEnqueueMediaUploadHandlerMarksRecording(t *testing.T) {
	uploads := &fakeMediaUploadQueuer{}
	s := &Server{echo: echo.New(), mediaUploads: uploads}

	rec, c := postJSON(s.echo, "/internal/enqueue_media_upload", `{"recording_id": "rec-1"}`)

	require.NoError(t, s.enqueueMediaUploadHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "rec-1", uploads.markedID)
}

func TestEnqueueSequenceHandlerReturnsExecutionIDAndRunsAsync(t *testing.T) {
	starter := &fakeSeqStarter{id: "exec-1"}
	runner := newFakeSeqRunner()
	s := &Server{echo: echo.New(), seqStarter: starter, seqRunner: runner}

	rec, c := postJSON(s.echo, "/internal/enqueue_sequence", `{
		"org_id": "org-1", "user_id": "user-1", "sequence_key": "deal_followup"
	}`)

	require.NoError(t, s.enqueueSequenceHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "exec-1")

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("sequence runner was not invoked")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.True(t, runner.ran)
}
