package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/bossmind/videomaker/internal/video"
)

func TestInsertEventWritesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	evt := video.Event{
		Type:      "render",
		Message:   "started",
		Meta:      map[string]any{"job": "1"},
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO system_logs").
		WithArgs("render", "started", []byte(`{"job":"1"}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertEvent(context.Background(), evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventNilMetaBecomesEmptyObject(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "ops_events")
	require.NoError(t, err)

	now := time.Unix(1, 0).UTC()
	mock.ExpectExec("INSERT INTO ops_events").
		WithArgs("event", "", []byte(`{}`), now).
		WillReturnError(errors.New("connection reset"))

	err = store.InsertEvent(context.Background(), video.Event{Type: "event", CreatedAt: now})
	require.ErrorContains(t, err, "insert event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEventStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEventStoreWithPool(mock, "logs; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewEventStoreWithPool(nil, "")
	require.ErrorContains(t, err, "pool is required")
}

func TestNewEventStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewEventStore(context.Background(), EventStoreConfig{})
	require.ErrorContains(t, err, "database.dsn is required")
}
