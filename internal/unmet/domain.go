package unmet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reason classifies why demand went unserved.
type Reason string

const (
	ReasonReduced        Reason = "reduced"
	ReasonCancelled      Reason = "cancelled"
	ReasonDeletedItem    Reason = "deleted_item"
	ReasonOutOfStock     Reason = "out_of_stock"
	ReasonClientRequest  Reason = "client_request"
	ReasonBookingDeleted Reason = "booking_deleted"
	ReasonOther          Reason = "other"
)

// Reasons is the closed set accepted at the boundary.
var Reasons = []Reason{
	ReasonReduced, ReasonCancelled, ReasonDeletedItem, ReasonOutOfStock,
	ReasonClientRequest, ReasonBookingDeleted, ReasonOther,
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Item is one product line as the demand ledger sees it.
type Item struct {
	Code string
	Name string
	Qty  decimal.Decimal
	Kg   decimal.Decimal
}

// Record is one append-only row of the unmet demand ledger.
type Record struct {
	ID           int64           `json:"id"`
	ChangeKey    uuid.UUID       `json:"change_key"`
	BookingID    int64           `json:"booking_id"`
	Client       string          `json:"client"`
	ClientCode   *string         `json:"client_code,omitempty"`
	OrderNumber  *string         `json:"order_number,omitempty"`
	ProductCode  string          `json:"product_code"`
	ProductName  *string         `json:"product_name,omitempty"`
	OriginalQty  decimal.Decimal `json:"original_qty"`
	FinalQty     decimal.Decimal `json:"final_qty"`
	UnmetQty     decimal.Decimal `json:"unmet_qty"`
	OriginalKg   decimal.Decimal `json:"original_kg"`
	FinalKg      decimal.Decimal `json:"final_kg"`
	UnmetKg      decimal.Decimal `json:"unmet_kg"`
	Reason       Reason          `json:"reason"`
	ReasonDetail *string         `json:"reason_detail,omitempty"`
	Date         *time.Time      `json:"date,omitempty"`
	CreatedBy    *int64          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Delta is one product line whose served quantity fell short of the order.
type Delta struct {
	Code        string
	Name        string
	OriginalQty decimal.Decimal
	FinalQty    decimal.Decimal
	OriginalKg  decimal.Decimal
	FinalKg     decimal.Decimal
	Removed     bool
}

// UnmetQty is the shortfall in units.
func (d Delta) UnmetQty() decimal.Decimal { return d.OriginalQty.Sub(d.FinalQty) }

// UnmetKg is the shortfall in kilograms.
func (d Delta) UnmetKg() decimal.Decimal { return d.OriginalKg.Sub(d.FinalKg) }

// DiffItems compares the original order lines with the final ones and returns
// the shortfalls, in the original's order. Lines that grew or stayed equal
// produce nothing; lines missing from final are reported as removed with a
// final quantity of zero. Duplicate codes are aggregated before comparison.
func DiffItems(original, final []Item) []Delta {
	type agg struct {
		name string
		qty  decimal.Decimal
		kg   decimal.Decimal
	}

	finalByCode := map[string]agg{}
	for _, item := range final {
		a := finalByCode[item.Code]
		if a.name == "" {
			a.name = item.Name
		}
		a.qty = a.qty.Add(item.Qty)
		a.kg = a.kg.Add(item.Kg)
		finalByCode[item.Code] = a
	}

	origByCode := map[string]agg{}
	var order []string
	for _, item := range original {
		a, seen := origByCode[item.Code]
		if !seen {
			order = append(order, item.Code)
		}
		if a.name == "" {
			a.name = item.Name
		}
		a.qty = a.qty.Add(item.Qty)
		a.kg = a.kg.Add(item.Kg)
		origByCode[item.Code] = a
	}

	var out []Delta
	for _, code := range order {
		orig := origByCode[code]
		fin, kept := finalByCode[code]
		if kept && fin.qty.GreaterThanOrEqual(orig.qty) {
			continue
		}
		out = append(out, Delta{
			Code:        code,
			Name:        orig.name,
			OriginalQty: orig.qty,
			FinalQty:    fin.qty,
			OriginalKg:  orig.kg,
			FinalKg:     fin.kg,
			Removed:     !kept,
		})
	}
	return out
}

var changeKeyNamespace = uuid.MustParse("a3b9dfc1-5a0e-4b8d-9f21-6f6f4f2d9a77")

// ChangeKey derives a deterministic key for one shortfall of one edit, so
// retried submissions insert the ledger row at most once. The token must
// identify the edit; the booking's pre-edit updated_at works.
func ChangeKey(bookingID int64, productCode string, reason Reason, originalQty, finalQty decimal.Decimal, token string) uuid.UUID {
	name := fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		bookingID, productCode, reason, originalQty.String(), finalQty.String(), token)
	return uuid.NewSHA1(changeKeyNamespace, []byte(name))
}
