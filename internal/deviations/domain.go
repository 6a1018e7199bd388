package deviations

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a logistic deviation.
type Type string

const (
	TypeDelay          Type = "delay"
	TypeEarly          Type = "early"
	TypeDoorChange     Type = "door_change"
	TypeDurationChange Type = "duration_change"
	TypeCancellation   Type = "cancellation"
)

// ImpactLevel grades how disruptive a deviation is.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// MinDeviationMinutes is the tolerance below which a start-time shift is not
// worth recording.
const MinDeviationMinutes = 5

// ImpactForMinutes grades a start-time deviation by its size.
func ImpactForMinutes(minutes int) ImpactLevel {
	if minutes < 0 {
		minutes = -minutes
	}
	switch {
	case minutes > 30:
		return ImpactHigh
	case minutes > 15:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Record is one append-only row of the deviation log.
type Record struct {
	ID               int64       `json:"id"`
	ChangeKey        uuid.UUID   `json:"change_key"`
	BookingID        int64       `json:"booking_id"`
	Type             Type        `json:"deviation_type"`
	PlannedStart     *time.Time  `json:"planned_start,omitempty"`
	RealStart        *time.Time  `json:"real_start,omitempty"`
	DeviationMinutes *int        `json:"deviation_minutes,omitempty"`
	PlannedDoor      *string     `json:"planned_door,omitempty"`
	RealDoor         *string     `json:"real_door,omitempty"`
	Reason           *string     `json:"reason,omitempty"`
	ImpactLevel      ImpactLevel `json:"impact_level"`
	Date             *time.Time  `json:"date,omitempty"`
	CreatedBy        *int64      `json:"created_by,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Snapshot is the placement of a booking at one point in time, as the
// detector sees it.
type Snapshot struct {
	ResourceID      string
	Date            *time.Time
	StartMinutes    int
	DurationMinutes int
	PlannedStart    *time.Time
}

// Finding is one detected deviation, before it becomes a Record.
type Finding struct {
	Type             Type
	DeviationMinutes *int
	PlannedDoor      *string
	RealDoor         *string
	ImpactLevel      ImpactLevel
}

// DetectReschedule compares a booking's placement before and after an edit.
// A moved start beyond the tolerance is a delay or an early shift, a changed
// door is a door change, and a changed duration is a duration change. A
// booking that was never placed produces nothing.
func DetectReschedule(before, after Snapshot) []Finding {
	var out []Finding

	if before.ResourceID == "" || before.StartMinutes < 0 {
		return nil
	}

	sameDay := before.Date != nil && after.Date != nil && before.Date.Equal(*after.Date)
	if sameDay && after.StartMinutes >= 0 && before.StartMinutes != after.StartMinutes {
		shift := after.StartMinutes - before.StartMinutes
		if shift > MinDeviationMinutes || shift < -MinDeviationMinutes {
			kind := TypeDelay
			if shift < 0 {
				kind = TypeEarly
			}
			minutes := shift
			out = append(out, Finding{
				Type:             kind,
				DeviationMinutes: &minutes,
				ImpactLevel:      ImpactForMinutes(shift),
			})
		}
	}

	if after.ResourceID != "" && before.ResourceID != after.ResourceID {
		prev, next := before.ResourceID, after.ResourceID
		out = append(out, Finding{
			Type:        TypeDoorChange,
			PlannedDoor: &prev,
			RealDoor:    &next,
			ImpactLevel: ImpactMedium,
		})
	}

	if after.DurationMinutes > 0 && before.DurationMinutes != after.DurationMinutes {
		diff := after.DurationMinutes - before.DurationMinutes
		out = append(out, Finding{
			Type:             TypeDurationChange,
			DeviationMinutes: &diff,
			ImpactLevel:      ImpactLow,
		})
	}

	return out
}

// DetectRealStart compares the planned start with the observed one. Returns
// nil when the truck was on time within the tolerance. The tolerance is
// applied to the full duration, not truncated minutes, so 5m59s still counts.
func DetectRealStart(planned, real time.Time) *Finding {
	diff := real.Sub(planned)
	if diff <= MinDeviationMinutes*time.Minute && diff >= -MinDeviationMinutes*time.Minute {
		return nil
	}
	shift := int(diff.Round(time.Minute) / time.Minute)
	kind := TypeDelay
	if shift < 0 {
		kind = TypeEarly
	}
	return &Finding{
		Type:             kind,
		DeviationMinutes: &shift,
		ImpactLevel:      ImpactForMinutes(shift),
	}
}

// Cancellation builds the finding for a cancelled booking.
func Cancellation() Finding {
	return Finding{Type: TypeCancellation, ImpactLevel: ImpactCritical}
}

var changeKeyNamespace = uuid.MustParse("5f1c2e84-0d3b-47f6-8a9e-2b74c8f0d613")

// ChangeKey derives a deterministic key for one finding of one edit, so
// retried submissions insert the log row at most once.
func ChangeKey(bookingID int64, kind Type, token string) uuid.UUID {
	name := fmt.Sprintf("%d|%s|%s", bookingID, kind, token)
	return uuid.NewSHA1(changeKeyNamespace, []byte(name))
}
