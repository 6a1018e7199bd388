package unmet

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Service exposes ledger queries and rollups.
type Service struct {
	repo *Repository
}

// NewService constructs an unmet demand service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// List returns ledger rows matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	return s.repo.List(ctx, filter)
}

// Summary bundles the ledger rollups for a period.
type Summary struct {
	ByProduct []ProductTotal `json:"by_product"`
	ByClient  []ClientTotal  `json:"by_client"`
	ByReason  []ReasonTotal  `json:"by_reason"`
	ByDate    []DayTotal     `json:"by_date"`
}

// Summarize computes all rollups over the same filter.
func (s *Service) Summarize(ctx context.Context, filter ListFilter) (*Summary, error) {
	var summary Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byProduct, err := s.repo.TotalsByProduct(ctx, filter)
		if err != nil {
			return err
		}
		summary.ByProduct = byProduct
		return nil
	})
	g.Go(func() error {
		byClient, err := s.repo.TotalsByClient(ctx, filter)
		if err != nil {
			return err
		}
		summary.ByClient = byClient
		return nil
	})
	g.Go(func() error {
		byReason, err := s.repo.TotalsByReason(ctx, filter)
		if err != nil {
			return err
		}
		summary.ByReason = byReason
		return nil
	})
	g.Go(func() error {
		byDate, err := s.repo.TotalsByDate(ctx, filter)
		if err != nil {
			return err
		}
		summary.ByDate = byDate
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}
