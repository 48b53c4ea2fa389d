package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewStore(db), mock
}

func TestInsertReturnsNewEvent(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "source", "event_type", "external_event_id", "payload", "headers",
		"status", "error_message", "received_at", "processed_at",
	}).AddRow("evt-1", nil, "stripe", "invoice.paid", "evt_ext_1", []byte(`{}`), []byte(`{}`),
		StatusReceived, nil, time.Now(), nil)

	mock.ExpectQuery("INSERT INTO webhook_events").WillReturnRows(rows)

	ev, err := store.Insert(context.Background(), NewEvent{
		Source:          "stripe",
		EventType:       "invoice.paid",
		ExternalEventID: "evt_ext_1",
		Payload:         json.RawMessage(`{}`),
		Headers:         json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, StatusReceived, ev.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReturnsErrDuplicateOnConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO webhook_events").WillReturnError(nil).
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.Insert(context.Background(), NewEvent{
		Source:          "stripe",
		EventType:       "invoice.paid",
		ExternalEventID: "evt_ext_1",
		Payload:         json.RawMessage(`{}`),
		Headers:         json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedRecordsCause(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE webhook_events SET status").
		WithArgs(StatusFailed, sqlmock.AnyArg(), "boom", "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkFailed(context.Background(), "evt-1", errors.New("boom"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
