package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/kohort/internal/models"
)

func finishedUpload(status models.UploadStatus) models.Upload {
	started := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Second)
	return models.Upload{
		ID:         "u1",
		File:       "new_customers.json",
		Status:     status,
		Records:    1,
		Duplicates: 1,
		Invalid:    1,
		Summary:    "1 added. 2 failed (1 duplicate, 1 invalid).",
		StartedAt:  started,
		FinishedAt: &finished,
	}
}

func TestNewEventPayload(t *testing.T) {
	u := finishedUpload(models.UploadCompleted)
	payload := NewEventPayload(u)

	assert.Equal(t, UploadCompleted, payload.Type)
	assert.Equal(t, "u1", payload.UploadID)
	assert.Equal(t, 1, payload.Accepted)
	assert.Equal(t, 1, payload.Duplicates)
	assert.Equal(t, 1, payload.Invalid)
	assert.Equal(t, *u.FinishedAt, payload.CreatedAt)

	assert.Equal(t, UploadFailed, NewEventPayload(finishedUpload(models.UploadFailed)).Type)
}

func TestNewEventPayloadWithoutFinishTime(t *testing.T) {
	u := finishedUpload(models.UploadCompleted)
	u.FinishedAt = nil
	assert.Equal(t, u.StartedAt, NewEventPayload(u).CreatedAt)
}

func TestPGPublisherSendsNotification(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	u := finishedUpload(models.UploadCompleted)
	data, err := json.Marshal(NewEventPayload(u))
	require.NoError(t, err)

	mock.ExpectExec("SELECT pg_notify").
		WithArgs(ChannelName, string(data)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, (&PGPublisher{DB: mockDB}).Publish(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGPublisherReturnsExecError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectExec("SELECT pg_notify").WillReturnError(assert.AnError)

	err = (&PGPublisher{DB: mockDB}).Publish(context.Background(), finishedUpload(models.UploadFailed))
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHubPublisherBroadcastsAndRunsHook(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	sub := subscribe(t, hub, 1)

	var hooked []string
	pub := &HubPublisher{Hub: hub, After: func(u models.Upload) { hooked = append(hooked, u.ID) }}
	require.NoError(t, pub.Publish(context.Background(), finishedUpload(models.UploadCompleted)))
	assert.Equal(t, []string{"u1"}, hooked)

	select {
	case raw := <-sub.outbox:
		var got EventPayload
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, UploadCompleted, got.Type)
		assert.Equal(t, "new_customers.json", got.File)
	case <-time.After(time.Second):
		t.Fatal("did not receive upload event")
	}
}

func TestRelayDecodesBeforeBroadcast(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	sub := subscribe(t, hub, 2)

	var seen []EventPayload
	relay(hub, []byte(`{"type":"upload.failed","upload_id":"u9"}`), func(p EventPayload) { seen = append(seen, p) })
	relay(hub, []byte(`not json`), func(p EventPayload) { seen = append(seen, p) })

	require.Len(t, seen, 1)
	assert.Equal(t, "u9", seen[0].UploadID)

	select {
	case raw := <-sub.outbox:
		assert.Contains(t, string(raw), "u9")
	case <-time.After(time.Second):
		t.Fatal("did not relay notification")
	}
	select {
	case raw := <-sub.outbox:
		t.Fatalf("malformed notification was relayed: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}
