package scheduling

import "time"

// LineItemRequest is one order line as submitted by a client.
type LineItemRequest struct {
	Code        string  `json:"code" validate:"required,max=50"`
	Name        string  `json:"name" validate:"omitempty,max=200"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	Coefficient float64 `json:"coefficient" validate:"gte=0"`
	WeightKg    float64 `json:"weight_kg" validate:"gte=0"`
}

// CreateBookingRequest creates a booking. Placement fields are optional: a
// booking without them lands in the pending queue.
type CreateBookingRequest struct {
	OrderNumber string            `json:"order_number" validate:"required,max=50"`
	ClientCode  string            `json:"client_code" validate:"omitempty,max=50"`
	ClientName  string            `json:"client_name" validate:"omitempty,max=200"`
	Description string            `json:"description" validate:"omitempty,max=500"`
	ResourceID  *string           `json:"resource_id,omitempty" validate:"omitempty,max=50"`
	Date        *string           `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartHour   *int              `json:"start_hour,omitempty" validate:"omitempty,gte=0,lte=23"`
	StartMinute *int              `json:"start_minute,omitempty" validate:"omitempty,gte=0,lte=59"`
	Duration    *int              `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Priority    string            `json:"priority" validate:"omitempty,max=20"`
	Kg          *float64          `json:"kg,omitempty" validate:"omitempty,gt=0"`
	Items       []LineItemRequest `json:"items" validate:"omitempty,dive"`
}

// UpdateBookingRequest edits a booking. Nil fields are untouched. Changing
// items triggers unmet-demand recording; changing placement triggers
// deviation detection.
type UpdateBookingRequest struct {
	Description *string            `json:"description,omitempty" validate:"omitempty,max=500"`
	ResourceID  *string            `json:"resource_id,omitempty" validate:"omitempty,max=50"`
	Date        *string            `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartHour   *int               `json:"start_hour,omitempty" validate:"omitempty,gte=0,lte=23"`
	StartMinute *int               `json:"start_minute,omitempty" validate:"omitempty,gte=0,lte=59"`
	Duration    *int               `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Priority    *string            `json:"priority,omitempty" validate:"omitempty,max=20"`
	Status      *string            `json:"status,omitempty" validate:"omitempty,max=20"`
	Kg          *float64           `json:"kg,omitempty" validate:"omitempty,gt=0"`
	Items       *[]LineItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	Reason      string             `json:"reason" validate:"omitempty,max=500"`
}

// PlaceBookingRequest assigns a booking to a door and time slot.
type PlaceBookingRequest struct {
	ResourceID  string `json:"resource_id" validate:"required,max=50"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartHour   int    `json:"start_hour" validate:"gte=0,lte=23"`
	StartMinute int    `json:"start_minute" validate:"gte=0,lte=59"`
}

// BlockBookingRequest freezes a booking off the board.
type BlockBookingRequest struct {
	BlockedBy string  `json:"blocked_by" validate:"required,max=100"`
	Amount    float64 `json:"amount" validate:"required"`
	Reason    string  `json:"reason" validate:"required,max=500"`
}

// UnblockBookingRequest releases a blocked booking.
type UnblockBookingRequest struct {
	UnblockedBy string `json:"unblocked_by" validate:"required,max=100"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
}

// CancelBookingRequest cancels a booking. The reason feeds the deviation log.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// RealStartRequest records when the truck actually docked, as HH:MM. An
// empty value records the current time.
type RealStartRequest struct {
	RealStart string `json:"real_start" validate:"omitempty,datetime=15:04"`
}

// BulkCreateRequest creates many bookings at once. Rows fail independently
// within one transaction.
type BulkCreateRequest struct {
	Bookings []CreateBookingRequest `json:"bookings" validate:"required,min=1,max=200,dive"`
}

// BulkCreateResult reports one row of a bulk create. Warning carries advisory
// skips (in-week duplicate order numbers); Error carries real failures.
type BulkCreateResult struct {
	Index       int     `json:"index"`
	OrderNumber string  `json:"order_number"`
	BookingIDs  []int64 `json:"booking_ids,omitempty"`
	Split       bool    `json:"split"`
	Warning     string  `json:"warning,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// DuplicateCheckRequest asks which order numbers already have a booking in
// the week containing the reference date.
type DuplicateCheckRequest struct {
	OrderNumbers []string `json:"order_numbers" validate:"required,min=1,max=500,dive,required"`
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
}

// ListBookingsRequest filters the board listing.
type ListBookingsRequest struct {
	Date       *time.Time
	ResourceID *string
	Status     *Status
	ClientCode *string
	Limit      int
	Offset     int
}
