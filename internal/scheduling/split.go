package scheduling

import "fmt"

// SampiMode selects the split trigger.
type SampiMode string

const (
	// SampiModePallet is the V2 model: any item with a configured pallet
	// capacity routes to the Sampi line with per-pallet timing.
	SampiModePallet SampiMode = "pallet"
	// SampiModeThreshold is the legacy V1 model: the Sampi half exists only
	// when Sampi-coded items exceed the weight threshold, and its duration is
	// weight-derived like any regular booking.
	SampiModeThreshold SampiMode = "threshold"
)

// SplitPlanner partitions a booking draft into a regular half and a Sampi
// half when its items warrant it.
type SplitPlanner struct {
	mode SampiMode
}

// NewSplitPlanner builds a planner. Unknown modes fall back to V2.
func NewSplitPlanner(mode SampiMode) *SplitPlanner {
	if mode != SampiModeThreshold {
		mode = SampiModePallet
	}
	return &SplitPlanner{mode: mode}
}

// Mode returns the active split trigger.
func (p *SplitPlanner) Mode() SampiMode { return p.mode }

// Plan returns the bookings to persist for the draft: the draft itself when
// no split applies, otherwise the regular and Sampi halves. The union of
// items across the result equals the draft's items exactly once, and weight
// is conserved.
func (p *SplitPlanner) Plan(cfg PalletConfig, draft Booking) ([]Booking, bool) {
	items := NormalizeItems(draft.Items)

	var sampiItems, regularItems []LineItem
	for _, item := range items {
		if cfg.IsSampi(item.Code) {
			sampiItems = append(sampiItems, item)
		} else {
			regularItems = append(regularItems, item)
		}
	}

	if len(sampiItems) == 0 {
		return []Booking{draft}, false
	}

	if p.mode == SampiModeThreshold && !ExceedsLegacyThreshold(cfg, items) {
		return []Booking{draft}, false
	}

	sampiKg := TotalWeight(sampiItems)
	regularKg := TotalWeight(regularItems)

	var out []Booking

	if len(regularItems) > 0 && regularKg.IsPositive() {
		regular := draft
		regular.Items = regularItems
		regular.Kg = regularKg
		regular.DurationMinutes = RegularDurationMinutes(regularKg)
		regular.SampiOn = false
		regular.SampiMinutes = nil
		regular.SampiPallets = nil
		regular.Description = draft.Description + " [Regular]"
		out = append(out, regular)
	}

	sampi := draft
	sampi.ResourceID = ResourceSampi
	sampi.Items = sampiItems
	sampi.Kg = sampiKg
	sampi.SampiOn = true

	if p.mode == SampiModeThreshold {
		// V1 computes no pallet timing, only the flag.
		sampi.DurationMinutes = RegularDurationMinutes(sampiKg)
		sampi.Description = draft.Description + " [Sampi]"
	} else {
		calc := ComputeSampiTime(cfg, sampiItems)
		minutes := calc.TotalMinutes
		sampi.SampiMinutes = &minutes
		sampi.SampiPallets = calc.Detail
		// Board slots stay on the 30-minute grid; the exact pallet minutes
		// live in SampiMinutes.
		sampi.DurationMinutes = roundUpToSlot(calc.TotalMinutes)
		sampi.Description = draft.Description + fmt.Sprintf(" [Sampi: %d pallets, %d min]", calc.TotalPallets, calc.TotalMinutes)
	}
	out = append(out, sampi)

	return out, len(out) > 1
}

func roundUpToSlot(minutes int) int {
	if minutes <= 0 {
		return SlotMinutes
	}
	blocks := (minutes + SlotMinutes - 1) / SlotMinutes
	return blocks * SlotMinutes
}
