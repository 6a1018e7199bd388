// Package sheetsync relays booking changes to the external spreadsheet
// webhook through the job queue. Delivery is fire-and-forget: enqueue
// failures are logged and never surface as booking errors.
package sheetsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dockplan/dockplan/internal/scheduling"
	"github.com/dockplan/dockplan/jobs"
)

// Enqueuer submits sheet sync tasks. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueSheetSync(ctx context.Context, payload jobs.SheetSyncPayload) (*asynq.TaskInfo, error)
}

// Dispatcher turns booking change events into queued sheet rows.
type Dispatcher struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(queue Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, logger: logger}
}

var priorityLabels = map[scheduling.Priority]string{
	scheduling.PriorityNormal:  "Normal",
	scheduling.PriorityUrgent:  "Urgente",
	scheduling.PriorityReady:   "Listo",
	scheduling.PriorityWaiting: "En espera",
}

// PriorityLabel returns the display label for a booking priority.
func PriorityLabel(p scheduling.Priority) string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return priorityLabels[scheduling.PriorityNormal]
}

// TimeLabel formats the planned start as HH:MM, empty when unplaced.
func TimeLabel(b *scheduling.Booking) string {
	if b.StartHour == nil || b.StartMinute == nil {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", *b.StartHour, *b.StartMinute)
}

// Row flattens a booking into the sheet's column shape.
func Row(event string, b *scheduling.Booking) map[string]any {
	row := map[string]any{
		"event":       event,
		"id":          b.ID,
		"client":      b.Client,
		"description": b.Description,
		"resource_id": b.ResourceID,
		"time":        TimeLabel(b),
		"duration":    b.DurationMinutes,
		"kg":          b.Kg.StringFixed(2),
		"status":      string(b.Status),
		"priority":    PriorityLabel(b.Priority),
		"color":       b.Color,
		"blocked":     b.IsBlocked,
	}
	if b.OrderNumber != nil {
		row["order_number"] = *b.OrderNumber
	}
	if b.ClientCode != nil {
		row["client_code"] = *b.ClientCode
	}
	if b.Date != nil {
		row["date"] = b.Date.Format("2006-01-02")
	}
	if b.SampiOn && b.SampiMinutes != nil {
		row["sampi_minutes"] = *b.SampiMinutes
	}
	return row
}

// BookingChanged implements scheduling.Notifier.
func (d *Dispatcher) BookingChanged(ctx context.Context, event string, b *scheduling.Booking) {
	if d == nil || d.queue == nil || b == nil {
		return
	}
	payload := jobs.SheetSyncPayload{
		Event:     event,
		BookingID: b.ID,
		Row:       Row(event, b),
	}
	if _, err := d.queue.EnqueueSheetSync(ctx, payload); err != nil {
		d.logger.Warn("enqueue sheet sync",
			slog.String("event", event),
			slog.Int64("booking_id", b.ID),
			slog.Any("error", err))
	}
}
