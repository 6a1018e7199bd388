package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPalletsFor(t *testing.T) {
	assert.Equal(t, 2, PalletsFor(864, 1000))
	assert.Equal(t, 1, PalletsFor(864, 864))
	assert.Equal(t, 1, PalletsFor(864, 1))
	assert.Equal(t, 5, PalletsFor(200, 1000))
	assert.Equal(t, 6, PalletsFor(200, 1001))

	// floor of one pallet, even on bad input
	assert.Equal(t, 1, PalletsFor(0, 100))
	assert.Equal(t, 1, PalletsFor(864, 0))
}

func TestComputeSampiTime(t *testing.T) {
	cfg := defaultPalletConfig

	t.Run("single code", func(t *testing.T) {
		got := ComputeSampiTime(cfg, []LineItem{item("1011", 1000, 1)})
		require.True(t, got.HasSampi)
		assert.Equal(t, 2, got.TotalPallets)
		assert.Equal(t, 8, got.TotalMinutes)
		detail := got.Detail["1011"]
		assert.Equal(t, int64(1000), detail.Units)
		assert.Equal(t, 864, detail.UnitsPerPallet)
		assert.Equal(t, 2, detail.Pallets)
		assert.Equal(t, 8, detail.Minutes)
	})

	t.Run("accumulates across codes", func(t *testing.T) {
		got := ComputeSampiTime(cfg, []LineItem{
			item("1011", 864, 1),
			item("1059", 401, 1),
		})
		assert.Equal(t, 1+3, got.TotalPallets)
		assert.Equal(t, 16, got.TotalMinutes)
	})

	t.Run("unknown codes ignored", func(t *testing.T) {
		got := ComputeSampiTime(cfg, []LineItem{item("7777", 500, 1)})
		assert.False(t, got.HasSampi)
		assert.Zero(t, got.TotalMinutes)
	})
}

func TestExceedsLegacyThreshold(t *testing.T) {
	cfg := defaultPalletConfig

	light := []LineItem{item("1011", 648, 1)}
	assert.False(t, ExceedsLegacyThreshold(cfg, light), "exactly at threshold is not over it")

	heavy := []LineItem{item("1011", 649, 1)}
	assert.True(t, ExceedsLegacyThreshold(cfg, heavy))

	// non-Sampi weight does not count
	mixed := []LineItem{item("7777", 10000, 1), item("1011", 10, 1)}
	assert.False(t, ExceedsLegacyThreshold(cfg, mixed))
}

type stubConfigLoader struct {
	cfg  PalletConfig
	err  error
	hits int
}

func (s *stubConfigLoader) LoadSampiConfig(_ context.Context) (PalletConfig, error) {
	s.hits++
	return s.cfg, s.err
}

func TestPalletConfigSource(t *testing.T) {
	ctx := context.Background()

	t.Run("serves loader config and caches it", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		loader := &stubConfigLoader{cfg: PalletConfig{"1011": 864}}
		src := NewPalletConfigSource(loader, rdb, time.Minute, nil)

		got := src.Get(ctx)
		assert.Equal(t, 864, got["1011"])
		require.Equal(t, 1, loader.hits)

		// second read is served from redis
		got = src.Get(ctx)
		assert.Equal(t, 864, got["1011"])
		assert.Equal(t, 1, loader.hits)
	})

	t.Run("falls back to defaults when loader fails", func(t *testing.T) {
		loader := &stubConfigLoader{err: context.DeadlineExceeded}
		src := NewPalletConfigSource(loader, nil, time.Minute, nil)

		got := src.Get(ctx)
		assert.Equal(t, defaultPalletConfig, got)
	})

	t.Run("serves last known config when loader degrades", func(t *testing.T) {
		loader := &stubConfigLoader{cfg: PalletConfig{"1063": 192}}
		src := NewPalletConfigSource(loader, nil, time.Minute, nil)

		first := src.Get(ctx)
		require.Equal(t, 192, first["1063"])

		loader.cfg = nil
		loader.err = context.DeadlineExceeded
		second := src.Get(ctx)
		assert.Equal(t, first, second)
	})

	t.Run("nil source yields defaults", func(t *testing.T) {
		var src *PalletConfigSource
		assert.Equal(t, defaultPalletConfig, src.Get(ctx))
	})
}

func TestSampiWeight(t *testing.T) {
	cfg := defaultPalletConfig
	items := []LineItem{
		item("1011", 100, 1.2),
		item("7777", 50, 2),
	}
	got := SampiWeight(cfg, items)
	assert.True(t, got.Equal(decimal.NewFromInt(120)), "got %s", got)
}
