package webhookingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/eventlog"
)

type fakeStore struct {
	events     map[string]*eventlog.Event
	duplicate  bool
	nextID     int
	failedIDs  []string
	processed  []string
	assignedOrg string
}

func newFakeStore() *fakeStore { return &fakeStore{events: map[string]*eventlog.Event{}} }

func (f *fakeStore) Insert(ctx context.Context, ev eventlog.NewEvent) (*eventlog.Event, error) {
	if f.duplicate {
		return nil, eventlog.ErrDuplicate
	}
	f.nextID++
	id := "evt-fake"
	e := &eventlog.Event{ID: id, Source: ev.Source, EventType: ev.EventType, Payload: ev.Payload, Status: eventlog.StatusReceived}
	f.events[id] = e
	return e, nil
}

func (f *fakeStore) AssignOrg(ctx context.Context, id, orgID string) error {
	f.assignedOrg = orgID
	return nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, id string) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id string, cause error) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

type fakeSource struct {
	name       string
	verifyErr  error
	orgID      string
	processErr error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Verify(r *http.Request, body []byte) error { return f.verifyErr }
func (f *fakeSource) ParseIdentity(body []byte) (string, string, error) {
	return "some.event", "ext-1", nil
}
func (f *fakeSource) ResolveOrg(ctx context.Context, body []byte) (string, error) {
	return f.orgID, nil
}
func (f *fakeSource) Process(ctx context.Context, event *eventlog.Event) error {
	return f.processErr
}

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/webhooks/test", strings.NewReader(body))
}

func TestPipelineHandleProcessesNewEvent(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "test", orgID: "org-1"}
	p := NewPipeline(store, src)

	result, err := p.Handle(context.Background(), "test", newRequest(`{}`))
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusProcessed, result.Status)
	assert.Equal(t, "org-1", store.assignedOrg)
	assert.Len(t, store.processed, 1)
}

func TestPipelineHandleRejectsBadSignature(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "test", verifyErr: errors.New("bad sig")}
	p := NewPipeline(store, src)

	_, err := p.Handle(context.Background(), "test", newRequest(`{}`))
	assert.Error(t, err)
	assert.Empty(t, store.events)
}

func TestPipelineHandleIgnoresDuplicateDelivery(t *testing.T) {
	store := newFakeStore()
	store.duplicate = true
	src := &fakeSource{name: "test"}
	p := NewPipeline(store, src)

	result, err := p.Handle(context.Background(), "test", newRequest(`{}`))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestPipelineHandleMarksFailedOnProcessError(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "test", processErr: errors.New("downstream boom")}
	p := NewPipeline(store, src)

	_, err := p.Handle(context.Background(), "test", newRequest(`{}`))
	assert.Error(t, err)
	assert.Len(t, store.failedIDs, 1)
}

func TestPipelineHandleUnknownSourceReturnsNotFound(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store)

	_, err := p.Handle(context.Background(), "nonexistent", newRequest(`{}`))
	assert.Error(t, err)
}
