package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheetTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewSheetSyncTask(SheetSyncPayload{
		Event:     "created",
		BookingID: 7,
		Row:       map[string]any{"client": "ACME"},
	})
	require.NoError(t, err)
	return task
}

func TestSheetSyncJobDelivers(t *testing.T) {
	var received SheetSyncPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := NewSheetSyncJob(srv.URL, time.Second, slog.Default())
	require.NoError(t, job.Handle(context.Background(), sheetTask(t)))

	assert.Equal(t, "created", received.Event)
	assert.Equal(t, int64(7), received.BookingID)
	assert.Equal(t, "ACME", received.Row["client"])
}

func TestSheetSyncJobRetriesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	job := NewSheetSyncJob(srv.URL, time.Second, slog.Default())
	err := job.Handle(context.Background(), sheetTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "5xx responses must stay retryable")
}

func TestSheetSyncJobSkipsBadPayload(t *testing.T) {
	job := NewSheetSyncJob("http://example.invalid", time.Second, slog.Default())
	task := asynq.NewTask(TaskTypeSheetSync, []byte("{nope"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestSheetSyncJobDisabledWithoutURL(t *testing.T) {
	job := NewSheetSyncJob("", time.Second, slog.Default())
	assert.NoError(t, job.Handle(context.Background(), sheetTask(t)))
}
