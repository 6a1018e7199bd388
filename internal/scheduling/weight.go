package scheduling

import "github.com/shopspring/decimal"

// kgPerBlock is the regular dock throughput: one 30-minute block handles up
// to 1500 kg. This is the canonical duration formula; the older 2000 kg/h
// variant was retired together with the V1 Sampi threshold.
var kgPerBlock = decimal.NewFromInt(1500)

var one = decimal.NewFromInt(1)

// WeightOf returns the weight of a line item in kilograms. An explicit
// override wins; otherwise quantity times coefficient, with the coefficient
// defaulting to 1.0 for unknown codes.
func WeightOf(item LineItem) decimal.Decimal {
	if item.WeightKg.IsPositive() {
		return item.WeightKg
	}
	coef := item.Coefficient
	if coef.IsZero() {
		coef = one
	}
	return item.Quantity.Mul(coef)
}

// TotalWeight sums WeightOf over all items.
func TotalWeight(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(WeightOf(item))
	}
	return total
}

// NormalizeItems fills the derived WeightKg on items that carry none, so the
// invariant weightKg == quantity * coefficient holds unless overridden.
func NormalizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.WeightKg = WeightOf(item)
		out[i] = item
	}
	return out
}

// RegularDurationMinutes converts total cargo weight into a task duration:
// one slot per started 1500 kg block, never less than one slot.
func RegularDurationMinutes(totalKg decimal.Decimal) int {
	if !totalKg.IsPositive() {
		return SlotMinutes
	}
	blocks := totalKg.Div(kgPerBlock).Ceil().IntPart()
	if blocks < 1 {
		blocks = 1
	}
	return int(blocks) * SlotMinutes
}
