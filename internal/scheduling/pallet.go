package scheduling

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// MinutesPerPallet is the fixed Sampi handling time per pallet.
const MinutesPerPallet = 4

// legacyThresholdKg is the V1 cutoff: a booking whose Sampi-coded items
// weigh more than this was flagged for the pallet line. Superseded by the
// per-pallet V2 model; kept only for SampiModeThreshold.
var legacyThresholdKg = decimal.NewFromInt(648)

// PalletConfig maps a Sampi product code to its units-per-pallet capacity.
// A code is a Sampi product iff it appears here.
type PalletConfig map[string]int

// defaultPalletConfig mirrors the shipped seed data; used when the config
// table is empty or unreachable.
var defaultPalletConfig = PalletConfig{
	"1011": 864,
	"1014": 864,
	"1015": 864,
	"1016": 864,
	"1059": 200,
	"1063": 192,
	"1066": 240,
}

// IsSampi reports whether the code is handled by the pallet line.
func (c PalletConfig) IsSampi(code string) bool {
	_, ok := c[code]
	return ok
}

// PalletsFor returns the pallet count for a unit quantity: ceil division with
// a floor of one pallet.
func PalletsFor(unitsPerPallet int, units int64) int {
	if unitsPerPallet <= 0 || units <= 0 {
		return 1
	}
	pallets := (units + int64(unitsPerPallet) - 1) / int64(unitsPerPallet)
	if pallets < 1 {
		pallets = 1
	}
	return int(pallets)
}

// SampiTime is the result of a V2 pallet timing calculation.
type SampiTime struct {
	TotalMinutes int
	TotalPallets int
	Detail       map[string]PalletDetail
	HasSampi     bool
}

// ComputeSampiTime accumulates pallet handling time over the Sampi-coded
// items; items with unknown codes or non-positive quantity are ignored.
func ComputeSampiTime(cfg PalletConfig, items []LineItem) SampiTime {
	result := SampiTime{Detail: map[string]PalletDetail{}}

	for _, item := range items {
		capacity, ok := cfg[item.Code]
		units := item.Quantity.IntPart()
		if !ok || units <= 0 {
			continue
		}
		pallets := PalletsFor(capacity, units)

		detail := result.Detail[item.Code]
		detail.Units += units
		detail.UnitsPerPallet = capacity
		detail.Pallets += pallets
		detail.Minutes += pallets * MinutesPerPallet
		result.Detail[item.Code] = detail

		result.TotalPallets += pallets
	}

	result.TotalMinutes = result.TotalPallets * MinutesPerPallet
	result.HasSampi = len(result.Detail) > 0
	return result
}

// SampiWeight sums the weight of Sampi-coded items.
func SampiWeight(cfg PalletConfig, items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if cfg.IsSampi(item.Code) {
			total = total.Add(WeightOf(item))
		}
	}
	return total
}

// ExceedsLegacyThreshold implements the V1 flag: true when Sampi-coded items
// weigh more than 648 kg. It computes no duration.
func ExceedsLegacyThreshold(cfg PalletConfig, items []LineItem) bool {
	return SampiWeight(cfg, items).GreaterThan(legacyThresholdKg)
}

// PalletConfigLoader fetches the active pallet configuration from storage.
type PalletConfigLoader interface {
	LoadSampiConfig(ctx context.Context) (PalletConfig, error)
}

const palletConfigCacheKey = "dockplan:sampi:pallet_config"

// PalletConfigSource serves the pallet configuration with a Redis cache in
// front of the database, falling back to the shipped defaults when both are
// unavailable.
type PalletConfigSource struct {
	loader PalletConfigLoader
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	last PalletConfig
}

// NewPalletConfigSource builds a config source. rdb may be nil, in which case
// every call hits the loader.
func NewPalletConfigSource(loader PalletConfigLoader, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *PalletConfigSource {
	return &PalletConfigSource{loader: loader, rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the current pallet configuration.
func (s *PalletConfigSource) Get(ctx context.Context) PalletConfig {
	if s == nil || s.loader == nil {
		return defaultPalletConfig
	}

	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, palletConfigCacheKey).Bytes(); err == nil {
			var cfg PalletConfig
			if err := json.Unmarshal(raw, &cfg); err == nil && len(cfg) > 0 {
				return cfg
			}
		}
	}

	cfg, err := s.loader.LoadSampiConfig(ctx)
	if err != nil || len(cfg) == 0 {
		if err != nil && s.logger != nil {
			s.logger.Warn("load sampi config", slog.Any("error", err))
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.last) > 0 {
			return s.last
		}
		return defaultPalletConfig
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(cfg); err == nil {
			if err := s.rdb.Set(ctx, palletConfigCacheKey, raw, s.ttl).Err(); err != nil && s.logger != nil {
				s.logger.Warn("cache sampi config", slog.Any("error", err))
			}
		}
	}

	s.mu.Lock()
	s.last = cfg
	s.mu.Unlock()
	return cfg
}
