package events

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

func TestOutboxAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_outbox")).
		WithArgs("e-1", "inspection.approved", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outbox := NewOutbox(db)
	err = outbox.Append(context.Background(), contracts.Event{
		ID:           "e-1",
		Type:         contracts.EventInspectionApproved,
		InspectionID: "insp-1",
		ActorID:      "u-rev",
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxGetPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	scheduled := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "event_json", "scheduled_at", "status"}).
		AddRow("e-1", []byte(`{"id":"e-1","type":"action.closed","action_id":"act-9","actor_id":"u-1","occurred_at":"2026-08-01T10:00:00Z"}`), scheduled, "PENDING")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_json, scheduled_at, status")).
		WillReturnRows(rows)

	outbox := NewOutbox(db)
	pending, err := outbox.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e-1", pending[0].ID)
	assert.Equal(t, contracts.EventActionClosed, pending[0].Event.Type)
	assert.Equal(t, "act-9", pending[0].Event.ActionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxGetPendingCorruptJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "event_json", "scheduled_at", "status"}).
		AddRow("e-bad", []byte(`{nope`), time.Now(), "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_json, scheduled_at, status")).
		WillReturnRows(rows)

	outbox := NewOutbox(db)
	_, err = outbox.GetPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt event JSON")
}

func TestOutboxMarkDone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_outbox SET status = 'DONE'")).
		WithArgs("e-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outbox := NewOutbox(db)
	require.NoError(t, outbox.MarkDone(context.Background(), "e-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
