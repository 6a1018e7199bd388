package scheduling

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SlotMinutes is the scheduling granularity of the board.
const SlotMinutes = 30

// ResourceUnassigned is the sentinel resource id for bookings sitting in the
// intake queue, not yet placed on the board.
const ResourceUnassigned = "UNASSIGNED"

// ResourceSampi is the dedicated pallet-line resource that receives the Sampi
// half of a split booking.
const ResourceSampi = "sampi"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusBlocked    Status = "BLOCKED"
)

// Statuses is the closed set accepted at the boundary.
var Statuses = []Status{
	StatusPending, StatusPlanned, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusBlocked,
}

type Priority string

const (
	PriorityNormal  Priority = "NORMAL"
	PriorityUrgent  Priority = "URGENT"
	PriorityReady   Priority = "READY"
	PriorityWaiting Priority = "WAITING"
)

// Priorities is the closed set accepted at the boundary.
var Priorities = []Priority{PriorityNormal, PriorityUrgent, PriorityReady, PriorityWaiting}

// Board colors double as the priority display encoding.
const (
	ColorDefault = "blue"
	ColorBlocked = "red"
)

var priorityColors = map[Priority]string{
	PriorityNormal:  "blue",
	PriorityUrgent:  "red",
	PriorityReady:   "green",
	PriorityWaiting: "orange",
}

var colorPriorities = map[string]Priority{
	"blue":   PriorityNormal,
	"red":    PriorityUrgent,
	"green":  PriorityReady,
	"orange": PriorityWaiting,
}

// ColorFor maps a priority to its board color.
func ColorFor(p Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c
	}
	return ColorDefault
}

// PriorityFor maps a board color back to the priority it displays.
func PriorityFor(color string) Priority {
	if p, ok := colorPriorities[color]; ok {
		return p
	}
	return PriorityNormal
}

// AllowedBlockers is the fixed set of people authorized to block a booking.
var AllowedBlockers = []string{"JUAMPI", "MAURICIO", "SANDRA"}

// ClientBlocker marks bookings blocked by a client-level cascade rather than
// an individual.
const ClientBlocker = "CLIENT"

// IsAllowedBlocker reports whether name (case-insensitive) may block bookings.
func IsAllowedBlocker(name string) bool {
	for _, b := range AllowedBlockers {
		if strings.EqualFold(name, b) {
			return true
		}
	}
	return false
}

// LineItem is one product line of a booking. WeightKg is quantity times
// coefficient unless explicitly overridden at intake.
type LineItem struct {
	Code        string          `json:"code"`
	Name        string          `json:"name,omitempty"`
	Quantity    decimal.Decimal `json:"qty"`
	Coefficient decimal.Decimal `json:"coef"`
	WeightKg    decimal.Decimal `json:"kg"`
}

// PalletDetail is the per-code breakdown of a Sampi timing calculation.
type PalletDetail struct {
	Units          int64 `json:"units"`
	UnitsPerPallet int   `json:"units_per_pallet"`
	Pallets        int   `json:"pallets"`
	Minutes        int   `json:"minutes"`
}

// Booking is a scheduled (or pending) freight pickup on a dock door.
type Booking struct {
	ID          int64   `json:"id"`
	Client      string  `json:"client"`
	ClientCode  *string `json:"client_code,omitempty"`
	OrderNumber *string `json:"order_number,omitempty"`
	Description string  `json:"description"`

	ResourceID      string     `json:"resource_id"`
	Date            *time.Time `json:"date,omitempty"`
	StartHour       *int       `json:"start_hour,omitempty"`
	StartMinute     *int       `json:"start_minute,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`

	Kg           decimal.Decimal         `json:"kg"`
	Items        []LineItem              `json:"items,omitempty"`
	SampiOn      bool                    `json:"sampi_on"`
	SampiMinutes *int                    `json:"sampi_minutes,omitempty"`
	SampiPallets map[string]PalletDetail `json:"sampi_pallets,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Color    string   `json:"color"`

	RealStartAt *time.Time `json:"real_start_at,omitempty"`
	RealEndAt   *time.Time `json:"real_end_at,omitempty"`

	IsBlocked         bool             `json:"is_blocked"`
	BlockedBy         *string          `json:"blocked_by,omitempty"`
	BlockedReason     *string          `json:"blocked_reason,omitempty"`
	BlockedDebtAmount *decimal.Decimal `json:"blocked_debt_amount,omitempty"`
	BlockedAt         *time.Time       `json:"blocked_at,omitempty"`
	PrevStatus        *string          `json:"prev_status,omitempty"`
	PrevResourceID    *string          `json:"prev_resource_id,omitempty"`
	PrevColor         *string          `json:"prev_color,omitempty"`

	CancellationReason *string `json:"cancellation_reason,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Placed reports whether the booking occupies a board slot.
func (b *Booking) Placed() bool {
	return b.ResourceID != "" && b.ResourceID != ResourceUnassigned &&
		b.Date != nil && b.StartHour != nil && b.StartMinute != nil
}

// StartMinutes returns the planned start as minutes past midnight, or -1 when
// the booking has no start time.
func (b *Booking) StartMinutes() int {
	if b.StartHour == nil || b.StartMinute == nil {
		return -1
	}
	return *b.StartHour*60 + *b.StartMinute
}

// PlannedStart combines date and start time into a timestamp.
func (b *Booking) PlannedStart() *time.Time {
	if b.Date == nil || b.StartHour == nil || b.StartMinute == nil {
		return nil
	}
	t := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), *b.StartHour, *b.StartMinute, 0, 0, time.UTC)
	return &t
}

// BlockAudit is one append-only row of the block/unblock trail.
type BlockAudit struct {
	ID          int64           `json:"id"`
	BookingID   int64           `json:"booking_id"`
	Action      string          `json:"action"`
	BlockedBy   string          `json:"blocked_by"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      *string         `json:"reason,omitempty"`
	ActorUserID int64           `json:"actor_user_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	AuditActionBlock   = "BLOCK"
	AuditActionUnblock = "UNBLOCK"
)
