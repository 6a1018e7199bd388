package scheduling

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(code string, qty, coef float64) LineItem {
	return LineItem{
		Code:        code,
		Quantity:    decimal.NewFromFloat(qty),
		Coefficient: decimal.NewFromFloat(coef),
	}
}

func TestWeightOf(t *testing.T) {
	t.Run("quantity times coefficient", func(t *testing.T) {
		got := WeightOf(item("1020", 100, 2.5))
		assert.True(t, got.Equal(decimal.NewFromInt(250)), "got %s", got)
	})

	t.Run("coefficient defaults to one", func(t *testing.T) {
		got := WeightOf(item("9999", 40, 0))
		assert.True(t, got.Equal(decimal.NewFromInt(40)), "got %s", got)
	})

	t.Run("explicit override wins", func(t *testing.T) {
		it := item("1020", 100, 2.5)
		it.WeightKg = decimal.NewFromInt(123)
		got := WeightOf(it)
		assert.True(t, got.Equal(decimal.NewFromInt(123)), "got %s", got)
	})
}

func TestTotalWeight(t *testing.T) {
	items := []LineItem{
		item("a", 10, 1.5),
		item("b", 5, 2),
	}
	got := TotalWeight(items)
	assert.True(t, got.Equal(decimal.NewFromInt(25)), "got %s", got)

	assert.True(t, TotalWeight(nil).IsZero())
}

func TestNormalizeItemsConservesWeight(t *testing.T) {
	items := []LineItem{item("a", 10, 1.5), item("b", 3, 0)}
	normalized := NormalizeItems(items)
	require.Len(t, normalized, 2)
	assert.True(t, normalized[0].WeightKg.Equal(decimal.NewFromInt(15)))
	assert.True(t, normalized[1].WeightKg.Equal(decimal.NewFromInt(3)))
	assert.True(t, TotalWeight(normalized).Equal(TotalWeight(items)))
}

func TestRegularDurationMinutes(t *testing.T) {
	cases := []struct {
		kg   float64
		want int
	}{
		{0, 30},
		{20, 30},
		{1500, 30},
		{1501, 60},
		{3000, 60},
		{3001, 90},
		{7500, 150},
	}
	for _, tc := range cases {
		got := RegularDurationMinutes(decimal.NewFromFloat(tc.kg))
		assert.Equal(t, tc.want, got, "kg=%v", tc.kg)
	}
}
