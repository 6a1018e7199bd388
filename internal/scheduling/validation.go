package scheduling

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ValidateStruct runs the request struct's validate tags.
func ValidateStruct(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// validDuration enforces the slot grid: positive and a multiple of 30.
func validDuration(minutes int) error {
	if minutes <= 0 || minutes%SlotMinutes != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, minutes)
	}
	return nil
}

// parseDate parses a YYYY-MM-DD board date.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrValidation, s)
	}
	return t, nil
}

// itemsFromRequest converts request lines to domain items with decimal
// quantities, rejecting non-positive quantities.
func itemsFromRequest(lines []LineItemRequest) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	items := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s quantity must be positive", ErrValidation, line.Code)
		}
		items = append(items, LineItem{
			Code:        line.Code,
			Name:        line.Name,
			Quantity:    decimal.NewFromFloat(line.Quantity),
			Coefficient: decimal.NewFromFloat(line.Coefficient),
			WeightKg:    decimal.NewFromFloat(line.WeightKg),
		})
	}
	return NormalizeItems(items), nil
}
