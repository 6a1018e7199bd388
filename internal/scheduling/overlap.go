package scheduling

import (
	"fmt"
	"sort"
	"time"
)

// BookingWindow is the slice of a booking the overlap check needs.
type BookingWindow struct {
	ID              int64
	StartMinutes    int
	DurationMinutes int
}

// Window describes a candidate placement on the board.
type Window struct {
	ResourceID      string
	Date            time.Time
	StartMinutes    int
	DurationMinutes int
}

// EndMinutes is the exclusive end of the window.
func (w Window) EndMinutes() int { return w.StartMinutes + w.DurationMinutes }

// Validate rejects windows that cannot be placed. A missing resource fails
// closed: it is an error, never "no conflict".
func (w Window) Validate() error {
	if w.ResourceID == "" || w.ResourceID == ResourceUnassigned {
		return ErrMissingResource
	}
	if w.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration %d", ErrInvalidWindow, w.DurationMinutes)
	}
	if w.StartMinutes < 0 || w.EndMinutes() <= w.StartMinutes {
		return fmt.Errorf("%w: start %d", ErrInvalidWindow, w.StartMinutes)
	}
	return nil
}

// Overlaps reports whether two half-open intervals [s1, s1+d1) and
// [s2, s2+d2) intersect. Edge-touching intervals do not overlap.
func Overlaps(s1, d1, s2, d2 int) bool {
	return s1 < s2+d2 && s1+d1 > s2
}

// FindConflict returns the first booking window conflicting with the
// candidate interval, scanning in (start, id) order so the answer is
// deterministic. Returns (0, false) when the slot is free.
func FindConflict(windows []BookingWindow, startMinutes, durationMinutes int) (int64, bool) {
	sorted := make([]BookingWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartMinutes != sorted[j].StartMinutes {
			return sorted[i].StartMinutes < sorted[j].StartMinutes
		}
		return sorted[i].ID < sorted[j].ID
	})

	for _, w := range sorted {
		if Overlaps(startMinutes, durationMinutes, w.StartMinutes, w.DurationMinutes) {
			return w.ID, true
		}
	}
	return 0, false
}
