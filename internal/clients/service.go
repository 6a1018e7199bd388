package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var validate = validator.New()

var titleCaser = cases.Title(language.Spanish)

// NormalizeName canonicalizes a client name: trimmed, single-spaced,
// title-cased. Codes arrive uppercase and stay that way.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return titleCaser.String(strings.ToLower(strings.Join(fields, " ")))
}

// Service provides client registry operations.
type Service struct {
	repo *Repository
}

// NewService constructs a clients service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// Get retrieves a client by code.
func (s *Service) Get(ctx context.Context, clientCode string) (*Client, error) {
	return s.repo.Get(ctx, clientCode)
}

// List returns all clients.
func (s *Service) List(ctx context.Context) ([]Client, error) {
	return s.repo.List(ctx)
}

// Upsert creates or updates a client by its unique code.
func (s *Service) Upsert(ctx context.Context, req UpsertClientRequest) (*Client, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	code := strings.ToUpper(strings.TrimSpace(req.ClientCode))
	if code == "" {
		return nil, fmt.Errorf("%w: client_code is required", ErrValidation)
	}
	var name *string
	if normalized := NormalizeName(req.ClientName); normalized != "" {
		name = &normalized
	}
	return s.repo.Upsert(ctx, code, name)
}

// Block marks a client blocked and freezes all its active bookings.
func (s *Service) Block(ctx context.Context, clientCode string, req BlockClientRequest) (*Client, int64, error) {
	if err := validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if req.Amount <= 0 {
		return nil, 0, ErrInvalidAmount
	}
	amount := decimal.NewFromFloat(req.Amount)
	return s.repo.BlockWithCascade(ctx, clientCode, amount, req.Reason, time.Now().UTC())
}

// Unblock clears a client's block and releases its cascade-blocked bookings.
func (s *Service) Unblock(ctx context.Context, clientCode string) (*Client, int64, error) {
	return s.repo.UnblockWithCascade(ctx, clientCode)
}
