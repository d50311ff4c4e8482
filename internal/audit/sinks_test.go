package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/encryption"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

func testEvent() *types.PHIAccessEvent {
	return BuildEvent(Access{
		InitiatorID: "svc2",
		Resource:    "ownerData",
		Message:     "download owner data",
		RequestData: map[string]interface{}{"latest_only": true},
	}, 200, types.CADFOutcomeSuccess, types.Resource{ID: "consent-service"}, time.Now())
}

func TestPostgresSink(t *testing.T) {
	t.Run("inserts a row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ev := testEvent()
		mock.ExpectExec("INSERT INTO phi_access_events").
			WithArgs(ev.ID, sqlmock.AnyArg(), "read", "success", "info", "svc2", ev.Target.ID, "ownerData",
				"consent-service", "200", "download owner data", []byte(`{"latest_only":true}`), false).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = NewPostgresSink(db, nil).Append(context.Background(), ev)

		// Assertions
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("encrypts request data", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cipher, err := encryption.NewAESEncryption("audit-key")
		require.NoError(t, err)

		ev := testEvent()
		mock.ExpectExec("INSERT INTO phi_access_events").
			WithArgs(ev.ID, sqlmock.AnyArg(), "read", "success", "info", "svc2", ev.Target.ID, "ownerData",
				"consent-service", "200", "download owner data", sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = NewPostgresSink(db, cipher).Append(context.Background(), ev)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO phi_access_events").WillReturnError(errors.New("permission denied"))

		err = NewPostgresSink(db, nil).Append(context.Background(), testEvent())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit event")
	})

	t.Run("bad event time", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ev := testEvent()
		ev.EventTime = "yesterday"

		assert.Error(t, NewPostgresSink(db, nil).Append(context.Background(), ev))
	})
}

func TestRedisStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ev := testEvent()
	err := NewRedisStreamSink(client, "phi-access-events").Append(context.Background(), ev)
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), "phi-access-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var stored types.PHIAccessEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &stored))

	// Assertions
	assert.Equal(t, ev.ID, entries[0].Values["id"])
	assert.Equal(t, ev.ID, stored.ID)
	assert.Equal(t, "ownerData", stored.Target.Name)
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, NewLogSink(logger.NewDiscard()).Append(context.Background(), testEvent()))
}
