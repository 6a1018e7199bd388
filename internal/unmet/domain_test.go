package unmet

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(code string, qty, kg float64) Item {
	return Item{
		Code: code,
		Qty:  decimal.NewFromFloat(qty),
		Kg:   decimal.NewFromFloat(kg),
	}
}

func TestDiffItems(t *testing.T) {
	t.Run("reduced line", func(t *testing.T) {
		deltas := DiffItems(
			[]Item{line("7777", 100, 100)},
			[]Item{line("7777", 60, 60)},
		)
		require.Len(t, deltas, 1)
		d := deltas[0]
		assert.Equal(t, "7777", d.Code)
		assert.False(t, d.Removed)
		assert.True(t, d.UnmetQty().Equal(decimal.NewFromInt(40)))
		assert.True(t, d.UnmetKg().Equal(decimal.NewFromInt(40)))
	})

	t.Run("removed line reports full shortfall", func(t *testing.T) {
		deltas := DiffItems(
			[]Item{line("7777", 50, 100)},
			nil,
		)
		require.Len(t, deltas, 1)
		d := deltas[0]
		assert.True(t, d.Removed)
		assert.True(t, d.FinalQty.IsZero())
		assert.True(t, d.UnmetQty().Equal(decimal.NewFromInt(50)))
		assert.True(t, d.UnmetKg().Equal(decimal.NewFromInt(100)))
	})

	t.Run("grown and unchanged lines produce nothing", func(t *testing.T) {
		deltas := DiffItems(
			[]Item{line("a", 10, 10), line("b", 5, 5)},
			[]Item{line("a", 10, 10), line("b", 9, 9)},
		)
		assert.Empty(t, deltas)
	})

	t.Run("duplicate codes aggregate before comparison", func(t *testing.T) {
		deltas := DiffItems(
			[]Item{line("a", 10, 10), line("a", 10, 10)},
			[]Item{line("a", 15, 15)},
		)
		require.Len(t, deltas, 1)
		assert.True(t, deltas[0].OriginalQty.Equal(decimal.NewFromInt(20)))
		assert.True(t, deltas[0].UnmetQty().Equal(decimal.NewFromInt(5)))
	})

	t.Run("original order preserved", func(t *testing.T) {
		deltas := DiffItems(
			[]Item{line("z", 10, 10), line("a", 10, 10)},
			nil,
		)
		require.Len(t, deltas, 2)
		assert.Equal(t, "z", deltas[0].Code)
		assert.Equal(t, "a", deltas[1].Code)
	})

	t.Run("first name wins for duplicate codes", func(t *testing.T) {
		orig := []Item{
			{Code: "a", Name: "Widgets", Qty: decimal.NewFromInt(5)},
			{Code: "a", Name: "widgets alt", Qty: decimal.NewFromInt(5)},
		}
		deltas := DiffItems(orig, nil)
		require.Len(t, deltas, 1)
		assert.Equal(t, "Widgets", deltas[0].Name)
	})
}

func TestChangeKeyDeterministic(t *testing.T) {
	qty10 := decimal.NewFromInt(10)
	qty4 := decimal.NewFromInt(4)

	a := ChangeKey(7, "7777", ReasonReduced, qty10, qty4, "2026-03-02T08:00:00Z")
	b := ChangeKey(7, "7777", ReasonReduced, qty10, qty4, "2026-03-02T08:00:00Z")
	assert.Equal(t, a, b)

	// any input change yields a different key
	assert.NotEqual(t, a, ChangeKey(8, "7777", ReasonReduced, qty10, qty4, "2026-03-02T08:00:00Z"))
	assert.NotEqual(t, a, ChangeKey(7, "8888", ReasonReduced, qty10, qty4, "2026-03-02T08:00:00Z"))
	assert.NotEqual(t, a, ChangeKey(7, "7777", ReasonDeletedItem, qty10, qty4, "2026-03-02T08:00:00Z"))
	assert.NotEqual(t, a, ChangeKey(7, "7777", ReasonReduced, qty10, qty4, "2026-03-02T09:00:00Z"))
}

func TestReasonValid(t *testing.T) {
	assert.True(t, ReasonReduced.Valid())
	assert.True(t, ReasonBookingDeleted.Valid())
	assert.False(t, Reason("whatever").Valid())
}
