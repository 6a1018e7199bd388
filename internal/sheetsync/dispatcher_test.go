package sheetsync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockplan/dockplan/internal/scheduling"
	"github.com/dockplan/dockplan/jobs"
)

type fakeEnqueuer struct {
	payloads []jobs.SheetSyncPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueSheetSync(_ context.Context, payload jobs.SheetSyncPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{}, nil
}

func placedBooking() *scheduling.Booking {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	hour, minute := 8, 30
	order := "SO-1"
	code := "ACME1"
	return &scheduling.Booking{
		ID:              7,
		Client:          "Acme Logistics",
		ClientCode:      &code,
		OrderNumber:     &order,
		Description:     "weekly pickup",
		ResourceID:      "door-1",
		Date:            &date,
		StartHour:       &hour,
		StartMinute:     &minute,
		DurationMinutes: 60,
		Kg:              decimal.NewFromFloat(1234.5),
		Status:          scheduling.StatusPlanned,
		Priority:        scheduling.PriorityUrgent,
		Color:           "red",
	}
}

func TestRow(t *testing.T) {
	b := placedBooking()
	row := Row("updated", b)

	assert.Equal(t, "updated", row["event"])
	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, "SO-1", row["order_number"])
	assert.Equal(t, "ACME1", row["client_code"])
	assert.Equal(t, "2026-03-02", row["date"])
	assert.Equal(t, "08:30", row["time"])
	assert.Equal(t, "1234.50", row["kg"])
	assert.Equal(t, "PLANNED", row["status"])
	assert.Equal(t, "Urgente", row["priority"])
	assert.NotContains(t, row, "sampi_minutes")
}

func TestRowSampi(t *testing.T) {
	b := placedBooking()
	minutes := 8
	b.SampiOn = true
	b.SampiMinutes = &minutes

	row := Row("created", b)
	assert.Equal(t, 8, row["sampi_minutes"])
}

func TestRowUnplaced(t *testing.T) {
	b := placedBooking()
	b.Date = nil
	b.StartHour = nil
	b.StartMinute = nil

	row := Row("created", b)
	assert.Equal(t, "", row["time"])
	assert.NotContains(t, row, "date")
}

func TestPriorityLabel(t *testing.T) {
	assert.Equal(t, "Normal", PriorityLabel(scheduling.PriorityNormal))
	assert.Equal(t, "Listo", PriorityLabel(scheduling.PriorityReady))
	assert.Equal(t, "En espera", PriorityLabel(scheduling.PriorityWaiting))
	assert.Equal(t, "Normal", PriorityLabel(scheduling.Priority("bogus")))
}

func TestDispatcherEnqueues(t *testing.T) {
	queue := &fakeEnqueuer{}
	d := NewDispatcher(queue, slog.Default())

	d.BookingChanged(context.Background(), scheduling.EventPlaced, placedBooking())

	require.Len(t, queue.payloads, 1)
	p := queue.payloads[0]
	assert.Equal(t, scheduling.EventPlaced, p.Event)
	assert.Equal(t, int64(7), p.BookingID)
	assert.Equal(t, "door-1", p.Row["resource_id"])
}

func TestDispatcherSwallowsEnqueueFailure(t *testing.T) {
	queue := &fakeEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(queue, slog.Default())

	assert.NotPanics(t, func() {
		d.BookingChanged(context.Background(), scheduling.EventCreated, placedBooking())
	})
}

func TestDispatcherNilSafety(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.BookingChanged(context.Background(), scheduling.EventCreated, placedBooking())
	})

	withQueue := NewDispatcher(&fakeEnqueuer{}, slog.Default())
	assert.NotPanics(t, func() {
		withQueue.BookingChanged(context.Background(), scheduling.EventCreated, nil)
	})
}
