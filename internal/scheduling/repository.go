package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dockplan/dockplan/internal/deviations"
	"github.com/dockplan/dockplan/internal/unmet"
)

const bookingColumns = `id, client, client_code, order_number, description,
       resource_id, date, start_hour, start_minute, duration_minutes,
       kg, items, sampi_on, sampi_minutes, sampi_pallets,
       status, priority, color, real_start_at, real_end_at,
       is_blocked, blocked_by, blocked_reason, blocked_debt_amount, blocked_at,
       prev_status, prev_resource_id, prev_color, cancellation_reason,
       created_by, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must run inside one transaction so
// the overlap check and the write see the same board.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Booking, error)
	// LockBoard serializes writers on one door-day. It must be taken before
	// the window read: row locks alone cannot stop two transactions from
	// both inserting into the same free window, because there is no row in
	// the gap to lock.
	LockBoard(ctx context.Context, resourceID string, date time.Time) error
	// ConflictWindows locks and returns the placed, non-cancelled bookings on
	// a door for a date, excluding excludeID (0 excludes nothing).
	ConflictWindows(ctx context.Context, resourceID string, date time.Time, excludeID int64) ([]BookingWindow, error)
	// Savepoint runs fn inside a nested transaction. A failing fn rolls back
	// to the savepoint without aborting the outer transaction.
	Savepoint(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, b Booking) (int64, error)
	Update(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id int64) error
	InsertBlockAudit(ctx context.Context, a BlockAudit) error
	InsertUnmetDemand(ctx context.Context, rec unmet.Record) error
	InsertDeviation(ctx context.Context, rec deviations.Record) error
	ClientBlock(ctx context.Context, clientCode string) (*ClientBlock, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var (
		b          Booking
		itemsRaw   []byte
		palletsRaw []byte
	)
	err := row.Scan(
		&b.ID, &b.Client, &b.ClientCode, &b.OrderNumber, &b.Description,
		&b.ResourceID, &b.Date, &b.StartHour, &b.StartMinute, &b.DurationMinutes,
		&b.Kg, &itemsRaw, &b.SampiOn, &b.SampiMinutes, &palletsRaw,
		&b.Status, &b.Priority, &b.Color, &b.RealStartAt, &b.RealEndAt,
		&b.IsBlocked, &b.BlockedBy, &b.BlockedReason, &b.BlockedDebtAmount, &b.BlockedAt,
		&b.PrevStatus, &b.PrevResourceID, &b.PrevColor, &b.CancellationReason,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &b.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(palletsRaw) > 0 {
		if err := json.Unmarshal(palletsRaw, &b.SampiPallets); err != nil {
			return nil, fmt.Errorf("decode sampi pallets: %w", err)
		}
	}
	return &b, nil
}

// Get retrieves a booking by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

// List returns bookings matching the filters, ordered for the board: by
// door, then start time, then id.
func (r *Repository) List(ctx context.Context, req ListBookingsRequest) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []any{}
	idx := 1

	if req.Date != nil {
		query += fmt.Sprintf(" AND date = $%d", idx)
		args = append(args, *req.Date)
		idx++
	}
	if req.ResourceID != nil {
		query += fmt.Sprintf(" AND resource_id = $%d", idx)
		args = append(args, *req.ResourceID)
		idx++
	}
	if req.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *req.Status)
		idx++
	}
	if req.ClientCode != nil {
		query += fmt.Sprintf(" AND client_code = $%d", idx)
		args = append(args, *req.ClientCode)
		idx++
	}

	query += " ORDER BY resource_id, start_hour NULLS LAST, start_minute NULLS LAST, id"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListPending returns the intake queue: bookings without a board slot, oldest
// first. Cancelled and completed bookings are excluded.
func (r *Repository) ListPending(ctx context.Context) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE (resource_id = $1 OR date IS NULL OR start_hour IS NULL)
		  AND status NOT IN ($2, $3)
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ResourceUnassigned, StatusCancelled, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// FindDuplicates returns the subset of orderNumbers that already have a
// non-cancelled booking dated inside [weekStart, weekEnd].
func (r *Repository) FindDuplicates(ctx context.Context, orderNumbers []string, weekStart, weekEnd time.Time) ([]string, error) {
	query := `SELECT DISTINCT order_number
		FROM bookings
		WHERE order_number = ANY($1)
		  AND date BETWEEN $2 AND $3
		  AND status <> $4`
	rows, err := r.pool.Query(ctx, query, orderNumbers, weekStart, weekEnd, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LoadSampiConfig loads the active pallet capacities.
func (r *Repository) LoadSampiConfig(ctx context.Context) (PalletConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, units_per_pallet FROM sampi_pallet_config WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg := PalletConfig{}
	for rows.Next() {
		var (
			code     string
			capacity int
		)
		if err := rows.Scan(&code, &capacity); err != nil {
			return nil, err
		}
		cfg[code] = capacity
	}
	return cfg, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(t.tx.QueryRow(ctx, query, id))
}

// LockBoard takes a transaction-scoped advisory lock on the door-day, released
// automatically at commit or rollback. Repeatable-read snapshot isolation has
// no predicate locking, so concurrent placements into the same free window
// would otherwise both pass the overlap check and both insert.
func (t *txRepo) LockBoard(ctx context.Context, resourceID string, date time.Time) error {
	_, err := t.tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || '|' || $2::date::text, 0))`,
		resourceID, date)
	return err
}

// Savepoint uses pgx nested transactions, which map onto SAVEPOINT / RELEASE /
// ROLLBACK TO on the wire.
func (t *txRepo) Savepoint(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: nested}); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

func (t *txRepo) ConflictWindows(ctx context.Context, resourceID string, date time.Time, excludeID int64) ([]BookingWindow, error) {
	query := `SELECT id, start_hour, start_minute, duration_minutes
		FROM bookings
		WHERE resource_id = $1 AND date = $2
		  AND start_hour IS NOT NULL AND start_minute IS NOT NULL
		  AND status <> $3
		  AND id <> $4
		FOR UPDATE`
	rows, err := t.tx.Query(ctx, query, resourceID, date, StatusCancelled, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookingWindow
	for rows.Next() {
		var (
			w         BookingWindow
			hour, min int
		)
		if err := rows.Scan(&w.ID, &hour, &min, &w.DurationMinutes); err != nil {
			return nil, err
		}
		w.StartMinutes = hour*60 + min
		out = append(out, w)
	}
	return out, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, b Booking) (int64, error) {
	itemsRaw, err := json.Marshal(b.Items)
	if err != nil {
		return 0, fmt.Errorf("encode items: %w", err)
	}
	var palletsRaw []byte
	if b.SampiPallets != nil {
		palletsRaw, err = json.Marshal(b.SampiPallets)
		if err != nil {
			return 0, fmt.Errorf("encode sampi pallets: %w", err)
		}
	}

	query := `INSERT INTO bookings (
			client, client_code, order_number, description,
			resource_id, date, start_hour, start_minute, duration_minutes,
			kg, items, sampi_on, sampi_minutes, sampi_pallets,
			status, priority, color,
			is_blocked, blocked_by, blocked_reason, blocked_debt_amount, blocked_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING id`

	var id int64
	err = t.tx.QueryRow(ctx, query,
		b.Client, b.ClientCode, b.OrderNumber, b.Description,
		b.ResourceID, b.Date, b.StartHour, b.StartMinute, b.DurationMinutes,
		b.Kg, itemsRaw, b.SampiOn, b.SampiMinutes, palletsRaw,
		b.Status, b.Priority, b.Color,
		b.IsBlocked, b.BlockedBy, b.BlockedReason, b.BlockedDebtAmount, b.BlockedAt,
		b.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Update(ctx context.Context, b *Booking) error {
	itemsRaw, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	var palletsRaw []byte
	if b.SampiPallets != nil {
		palletsRaw, err = json.Marshal(b.SampiPallets)
		if err != nil {
			return fmt.Errorf("encode sampi pallets: %w", err)
		}
	}

	query := `UPDATE bookings SET
			client = $2, client_code = $3, order_number = $4, description = $5,
			resource_id = $6, date = $7, start_hour = $8, start_minute = $9,
			duration_minutes = $10, kg = $11, items = $12,
			sampi_on = $13, sampi_minutes = $14, sampi_pallets = $15,
			status = $16, priority = $17, color = $18,
			real_start_at = $19, real_end_at = $20,
			is_blocked = $21, blocked_by = $22, blocked_reason = $23,
			blocked_debt_amount = $24, blocked_at = $25,
			prev_status = $26, prev_resource_id = $27, prev_color = $28,
			cancellation_reason = $29,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query,
		b.ID,
		b.Client, b.ClientCode, b.OrderNumber, b.Description,
		b.ResourceID, b.Date, b.StartHour, b.StartMinute,
		b.DurationMinutes, b.Kg, itemsRaw,
		b.SampiOn, b.SampiMinutes, palletsRaw,
		b.Status, b.Priority, b.Color,
		b.RealStartAt, b.RealEndAt,
		b.IsBlocked, b.BlockedBy, b.BlockedReason,
		b.BlockedDebtAmount, b.BlockedAt,
		b.PrevStatus, b.PrevResourceID, b.PrevColor,
		b.CancellationReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertBlockAudit(ctx context.Context, a BlockAudit) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO booking_block_audit (booking_id, action, blocked_by, amount, reason, actor_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.BookingID, a.Action, a.BlockedBy, a.Amount, a.Reason, a.ActorUserID,
	)
	return err
}

func (t *txRepo) InsertUnmetDemand(ctx context.Context, rec unmet.Record) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO unmet_demand (
			change_key, booking_id, client, client_code, order_number,
			product_code, product_name,
			original_qty, final_qty, unmet_qty,
			original_kg, final_kg, unmet_kg,
			reason, reason_detail, date, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (change_key) DO NOTHING`,
		rec.ChangeKey, rec.BookingID, rec.Client, rec.ClientCode, rec.OrderNumber,
		rec.ProductCode, rec.ProductName,
		rec.OriginalQty, rec.FinalQty, rec.UnmetQty,
		rec.OriginalKg, rec.FinalKg, rec.UnmetKg,
		rec.Reason, rec.ReasonDetail, rec.Date, rec.CreatedBy,
	)
	return err
}

func (t *txRepo) InsertDeviation(ctx context.Context, rec deviations.Record) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO logistic_deviations (
			change_key, booking_id, deviation_type,
			planned_start, real_start, deviation_minutes,
			planned_door, real_door, reason, impact_level, date, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (change_key) DO NOTHING`,
		rec.ChangeKey, rec.BookingID, rec.Type,
		rec.PlannedStart, rec.RealStart, rec.DeviationMinutes,
		rec.PlannedDoor, rec.RealDoor, rec.Reason, rec.ImpactLevel, rec.Date, rec.CreatedBy,
	)
	return err
}

// ClientBlock returns the block state of a client, or nil when the client is
// unknown or not blocked.
func (t *txRepo) ClientBlock(ctx context.Context, clientCode string) (*ClientBlock, error) {
	var cb ClientBlock
	err := t.tx.QueryRow(ctx,
		`SELECT client_code, blocked_amount, blocked_reason FROM clients WHERE client_code = $1 AND blocked`,
		clientCode,
	).Scan(&cb.ClientCode, &cb.Amount, &cb.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cb, nil
}

// ClientBlock is the subset of a client row the scheduler consults at intake.
type ClientBlock struct {
	ClientCode string
	Amount     *decimal.Decimal
	Reason     *string
}
