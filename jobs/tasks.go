package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSheetSync pushes a booking change to the external sheet webhook.
	TaskTypeSheetSync = "sheet:sync"
)

// SheetSyncPayload is one booking change bound for the sheet webhook.
type SheetSyncPayload struct {
	Event     string         `json:"event"`
	BookingID int64          `json:"booking_id"`
	Row       map[string]any `json:"row"`
}

// NewSheetSyncTask constructs an Asynq task.
func NewSheetSyncTask(payload SheetSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSheetSync, data), nil
}

// SheetSyncJob posts booking changes to the configured webhook. Failures are
// retried by the queue and never reach the booking path.
type SheetSyncJob struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewSheetSyncJob constructs the job. An empty url disables delivery.
func NewSheetSyncJob(url string, timeout time.Duration, logger *slog.Logger) *SheetSyncJob {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SheetSyncJob{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Handle processes TaskTypeSheetSync tasks.
func (j *SheetSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SheetSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.url == "" {
		j.logger.Debug("sheet sync disabled, dropping task",
			slog.Int64("booking_id", payload.BookingID))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return asynq.SkipRetry
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sheet webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheet webhook status %d", resp.StatusCode)
	}
	j.logger.Info("sheet sync delivered",
		slog.String("event", payload.Event),
		slog.Int64("booking_id", payload.BookingID))
	return nil
}
