package clients

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a freight customer. Its block state cascades onto bookings.
type Client struct {
	ID            int64            `json:"id"`
	ClientCode    string           `json:"client_code"`
	ClientName    *string          `json:"client_name,omitempty"`
	Blocked       bool             `json:"blocked"`
	BlockedAmount *decimal.Decimal `json:"blocked_amount,omitempty"`
	BlockedReason *string          `json:"blocked_reason,omitempty"`
	BlockedAt     *time.Time       `json:"blocked_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Domain errors.
var (
	ErrNotFound       = errors.New("client not found")
	ErrAlreadyBlocked = errors.New("client is already blocked")
	ErrNotBlocked     = errors.New("client is not blocked")
	ErrInvalidAmount  = errors.New("debt amount must be greater than zero")
	ErrValidation     = errors.New("validation failed")
)

// UpsertClientRequest creates or updates a client by its unique code.
type UpsertClientRequest struct {
	ClientCode string `json:"client_code" validate:"required,max=50"`
	ClientName string `json:"client_name" validate:"omitempty,max=200"`
}

// BlockClientRequest blocks a client and all its active bookings.
type BlockClientRequest struct {
	Amount float64 `json:"amount" validate:"required"`
	Reason string  `json:"reason" validate:"required,max=500"`
}
