package unmet

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides read access to the unmet demand ledger. Writes happen
// inside the scheduling transaction that caused them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilter narrows ledger queries.
type ListFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	ClientCode  *string
	ProductCode *string
	Reason      *Reason
	Limit       int
	Offset      int
}

func (f ListFilter) where() (string, []any) {
	query := " WHERE 1=1"
	args := []any{}
	idx := 1
	if f.DateFrom != nil {
		query += fmt.Sprintf(" AND date >= $%d", idx)
		args = append(args, *f.DateFrom)
		idx++
	}
	if f.DateTo != nil {
		query += fmt.Sprintf(" AND date <= $%d", idx)
		args = append(args, *f.DateTo)
		idx++
	}
	if f.ClientCode != nil {
		query += fmt.Sprintf(" AND client_code = $%d", idx)
		args = append(args, *f.ClientCode)
		idx++
	}
	if f.ProductCode != nil {
		query += fmt.Sprintf(" AND product_code = $%d", idx)
		args = append(args, *f.ProductCode)
		idx++
	}
	if f.Reason != nil {
		query += fmt.Sprintf(" AND reason = $%d", idx)
		args = append(args, *f.Reason)
	}
	return query, args
}

// List returns ledger rows matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	where, args := filter.where()
	query := `SELECT id, change_key, booking_id, client, client_code, order_number,
	       product_code, product_name,
	       original_qty, final_qty, unmet_qty,
	       original_kg, final_kg, unmet_kg,
	       reason, reason_detail, date, created_by, created_at
	FROM unmet_demand` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		err := rows.Scan(
			&rec.ID, &rec.ChangeKey, &rec.BookingID, &rec.Client, &rec.ClientCode, &rec.OrderNumber,
			&rec.ProductCode, &rec.ProductName,
			&rec.OriginalQty, &rec.FinalQty, &rec.UnmetQty,
			&rec.OriginalKg, &rec.FinalKg, &rec.UnmetKg,
			&rec.Reason, &rec.ReasonDetail, &rec.Date, &rec.CreatedBy, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ProductTotal is a ledger rollup for one product.
type ProductTotal struct {
	ProductCode string          `json:"product_code"`
	ProductName *string         `json:"product_name,omitempty"`
	Events      int64           `json:"events"`
	UnmetQty    decimal.Decimal `json:"unmet_qty"`
	UnmetKg     decimal.Decimal `json:"unmet_kg"`
}

// TotalsByProduct aggregates shortfalls per product, heaviest first.
func (r *Repository) TotalsByProduct(ctx context.Context, filter ListFilter) ([]ProductTotal, error) {
	where, args := filter.where()
	query := `SELECT product_code, MAX(product_name), COUNT(*), SUM(unmet_qty), SUM(unmet_kg)
	FROM unmet_demand` + where + `
	GROUP BY product_code
	ORDER BY SUM(unmet_kg) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductTotal
	for rows.Next() {
		var t ProductTotal
		if err := rows.Scan(&t.ProductCode, &t.ProductName, &t.Events, &t.UnmetQty, &t.UnmetKg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReasonTotal is a ledger rollup for one shortfall reason.
type ReasonTotal struct {
	Reason   Reason          `json:"reason"`
	Events   int64           `json:"events"`
	UnmetQty decimal.Decimal `json:"unmet_qty"`
	UnmetKg  decimal.Decimal `json:"unmet_kg"`
}

// TotalsByReason aggregates shortfalls per reason, heaviest first.
func (r *Repository) TotalsByReason(ctx context.Context, filter ListFilter) ([]ReasonTotal, error) {
	where, args := filter.where()
	query := `SELECT reason, COUNT(*), SUM(unmet_qty), SUM(unmet_kg)
	FROM unmet_demand` + where + `
	GROUP BY reason
	ORDER BY SUM(unmet_kg) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReasonTotal
	for rows.Next() {
		var t ReasonTotal
		if err := rows.Scan(&t.Reason, &t.Events, &t.UnmetQty, &t.UnmetKg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DayTotal is a ledger rollup for one booking date.
type DayTotal struct {
	Date     *time.Time      `json:"date"`
	Events   int64           `json:"events"`
	UnmetQty decimal.Decimal `json:"unmet_qty"`
	UnmetKg  decimal.Decimal `json:"unmet_kg"`
}

// TotalsByDate aggregates shortfalls per booking date, oldest first. Rows
// without a date collapse into a single NULL bucket.
func (r *Repository) TotalsByDate(ctx context.Context, filter ListFilter) ([]DayTotal, error) {
	where, args := filter.where()
	query := `SELECT date, COUNT(*), SUM(unmet_qty), SUM(unmet_kg)
	FROM unmet_demand` + where + `
	GROUP BY date
	ORDER BY date ASC NULLS LAST`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayTotal
	for rows.Next() {
		var t DayTotal
		if err := rows.Scan(&t.Date, &t.Events, &t.UnmetQty, &t.UnmetKg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ClientTotal is a ledger rollup for one client.
type ClientTotal struct {
	Client   string          `json:"client"`
	Events   int64           `json:"events"`
	UnmetQty decimal.Decimal `json:"unmet_qty"`
	UnmetKg  decimal.Decimal `json:"unmet_kg"`
}

// TotalsByClient aggregates shortfalls per client, heaviest first.
func (r *Repository) TotalsByClient(ctx context.Context, filter ListFilter) ([]ClientTotal, error) {
	where, args := filter.where()
	query := `SELECT client, COUNT(*), SUM(unmet_qty), SUM(unmet_kg)
	FROM unmet_demand` + where + `
	GROUP BY client
	ORDER BY SUM(unmet_kg) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientTotal
	for rows.Next() {
		var t ClientTotal
		if err := rows.Scan(&t.Client, &t.Events, &t.UnmetQty, &t.UnmetKg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
