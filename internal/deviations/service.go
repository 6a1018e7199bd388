package deviations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service exposes deviation log queries and KPIs.
type Service struct {
	repo *Repository
}

// NewService constructs a deviations service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// List returns log rows matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	return s.repo.List(ctx, filter)
}

// Stats computes period KPIs.
func (s *Service) Stats(ctx context.Context, filter ListFilter) (*KPI, error) {
	return s.repo.Stats(ctx, filter)
}
