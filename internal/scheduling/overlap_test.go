package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	// 08:00-09:00 vs 08:30-09:30 clash
	assert.True(t, Overlaps(8*60, 60, 8*60+30, 60))

	// edge-touching intervals are free: 08:00-09:00 then 09:00-10:00
	assert.False(t, Overlaps(8*60, 60, 9*60, 60))
	assert.False(t, Overlaps(9*60, 60, 8*60, 60))

	// containment
	assert.True(t, Overlaps(8*60, 120, 8*60+30, 30))
	assert.True(t, Overlaps(8*60+30, 30, 8*60, 120))

	// identical windows
	assert.True(t, Overlaps(8*60, 30, 8*60, 30))
}

func TestFindConflict(t *testing.T) {
	windows := []BookingWindow{
		{ID: 7, StartMinutes: 10 * 60, DurationMinutes: 30},
		{ID: 3, StartMinutes: 8 * 60, DurationMinutes: 60},
		{ID: 5, StartMinutes: 8 * 60, DurationMinutes: 60},
	}

	t.Run("returns earliest conflicting booking", func(t *testing.T) {
		id, clash := FindConflict(windows, 8*60+30, 60)
		require.True(t, clash)
		assert.Equal(t, int64(3), id, "ties break by lowest id")
	})

	t.Run("free slot", func(t *testing.T) {
		_, clash := FindConflict(windows, 9*60, 60)
		assert.False(t, clash)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		reversed := []BookingWindow{windows[2], windows[1], windows[0]}
		a, _ := FindConflict(windows, 8*60, 30)
		b, _ := FindConflict(reversed, 8*60, 30)
		assert.Equal(t, a, b)
	})

	t.Run("empty board", func(t *testing.T) {
		_, clash := FindConflict(nil, 8*60, 30)
		assert.False(t, clash)
	})
}

func TestWindowValidate(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok := Window{ResourceID: "door-1", Date: date, StartMinutes: 8 * 60, DurationMinutes: 30}
	require.NoError(t, ok.Validate())

	t.Run("missing resource fails closed", func(t *testing.T) {
		w := ok
		w.ResourceID = ""
		assert.ErrorIs(t, w.Validate(), ErrMissingResource)

		w.ResourceID = ResourceUnassigned
		assert.ErrorIs(t, w.Validate(), ErrMissingResource)
	})

	t.Run("non-positive duration", func(t *testing.T) {
		w := ok
		w.DurationMinutes = 0
		assert.ErrorIs(t, w.Validate(), ErrInvalidWindow)
	})

	t.Run("negative start", func(t *testing.T) {
		w := ok
		w.StartMinutes = -1
		assert.ErrorIs(t, w.Validate(), ErrInvalidWindow)
	})
}
