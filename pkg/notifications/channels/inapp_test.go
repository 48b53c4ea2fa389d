package channels

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertedInAppRow struct {
	userID           string
	orgID            string
	notificationType string
	payload          []byte
}

type fakeInAppStore struct {
	inserted []insertedInAppRow
}

func (f *fakeInAppStore) InsertInAppNotification(ctx context.Context, userID, orgID, notificationType string, payload []byte) error {
	f.inserted = append(f.inserted, insertedInAppRow{userID: userID, orgID: orgID, notificationType: notificationType, payload: payload})
	return nil
}

func TestInAppInsertsRow(t *testing.T) {
	store := &fakeInAppStore{}
	a := NewInApp(store)

	err := a.Deliver(context.Background(), Message{UserID: "u1", OrgID: "org1", NotificationType: "recording_ready", Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "u1", store.inserted[0].userID)
	assert.Equal(t, "recording_ready", store.inserted[0].notificationType)

	var p inAppPayload
	require.NoError(t, json.Unmarshal(store.inserted[0].payload, &p))
	assert.Equal(t, "t", p.Title)
	assert.Equal(t, "b", p.Body)
}

func TestInAppDefaultsNotificationType(t *testing.T) {
	store := &fakeInAppStore{}
	a := NewInApp(store)

	err := a.Deliver(context.Background(), Message{UserID: "u1", OrgID: "org1", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, defaultNotificationType, store.inserted[0].notificationType)
}
