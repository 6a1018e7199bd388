package deviations

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to the deviation log. Writes happen inside
// the scheduling transaction that caused them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilter narrows log queries.
type ListFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Type     *Type
	Impact   *ImpactLevel
	Limit    int
	Offset   int
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
	if f.Type != nil {
		query += fmt.Sprintf(" AND deviation_type = $%d", idx)
		args = append(args, *f.Type)
		idx++
	}
	if f.Impact != nil {
		query += fmt.Sprintf(" AND impact_level = $%d", idx)
		args = append(args, *f.Impact)
	}
	return query, args
}

// List returns log rows matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	where, args := filter.where()
	query := `SELECT id, change_key, booking_id, deviation_type,
	       planned_start, real_start, deviation_minutes,
	       planned_door, real_door, reason, impact_level, date, created_by, created_at
	FROM logistic_deviations` + where + ` ORDER BY created_at DESC, id DESC`
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
			&rec.ID, &rec.ChangeKey, &rec.BookingID, &rec.Type,
			&rec.PlannedStart, &rec.RealStart, &rec.DeviationMinutes,
			&rec.PlannedDoor, &rec.RealDoor, &rec.Reason, &rec.ImpactLevel,
			&rec.Date, &rec.CreatedBy, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// KPI summarizes the log over a period.
type KPI struct {
	Total         int64                 `json:"total"`
	ByType        map[Type]int64        `json:"by_type"`
	ByImpact      map[ImpactLevel]int64 `json:"by_impact"`
	AvgDelayMin   *float64              `json:"avg_delay_minutes,omitempty"`
	MaxDelayMin   *int                  `json:"max_delay_minutes,omitempty"`
	Cancellations int64                 `json:"cancellations"`
}

// Stats computes the period KPIs in one pass over the filtered rows.
func (r *Repository) Stats(ctx context.Context, filter ListFilter) (*KPI, error) {
	where, args := filter.where()
	query := `SELECT deviation_type, impact_level, COUNT(*),
	       AVG(deviation_minutes) FILTER (WHERE deviation_type = 'delay'),
	       MAX(deviation_minutes) FILTER (WHERE deviation_type = 'delay')
	FROM logistic_deviations` + where + `
	GROUP BY deviation_type, impact_level`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kpi := &KPI{ByType: map[Type]int64{}, ByImpact: map[ImpactLevel]int64{}}
	var (
		delaySum   float64
		delayCount int64
	)
	for rows.Next() {
		var (
			kind   Type
			impact ImpactLevel
			count  int64
			avg    *float64
			max    *int
		)
		if err := rows.Scan(&kind, &impact, &count, &avg, &max); err != nil {
			return nil, err
		}
		kpi.Total += count
		kpi.ByType[kind] += count
		kpi.ByImpact[impact] += count
		if kind == TypeCancellation {
			kpi.Cancellations += count
		}
		if avg != nil {
			delaySum += *avg * float64(count)
			delayCount += count
		}
		if max != nil && (kpi.MaxDelayMin == nil || *max > *kpi.MaxDelayMin) {
			kpi.MaxDelayMin = max
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if delayCount > 0 {
		avg := delaySum / float64(delayCount)
		kpi.AvgDelayMin = &avg
	}
	return kpi, nil
}
