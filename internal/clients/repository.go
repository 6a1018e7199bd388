package clients

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const clientColumns = `id, client_code, client_name, blocked, blocked_amount,
       blocked_reason, blocked_at, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for clients and the
// booking cascades their block state triggers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.ClientCode, &c.ClientName, &c.Blocked, &c.BlockedAmount,
		&c.BlockedReason, &c.BlockedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get retrieves a client by code.
func (r *Repository) Get(ctx context.Context, clientCode string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE client_code = $1`
	return scanClient(r.pool.QueryRow(ctx, query, clientCode))
}

// List returns all clients, blocked first, then by code.
func (r *Repository) List(ctx context.Context) ([]Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY blocked DESC, client_code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a client by its unique code.
func (r *Repository) Upsert(ctx context.Context, clientCode string, clientName *string) (*Client, error) {
	query := `INSERT INTO clients (client_code, client_name)
		VALUES ($1, $2)
		ON CONFLICT (client_code) DO UPDATE
		SET client_name = COALESCE(EXCLUDED.client_name, clients.client_name),
		    updated_at = NOW()
		RETURNING ` + clientColumns
	return scanClient(r.pool.QueryRow(ctx, query, clientCode, clientName))
}

// BlockWithCascade marks the client blocked and freezes all its active
// bookings in the same transaction. Returns the count of bookings frozen.
func (r *Repository) BlockWithCascade(ctx context.Context, clientCode string, amount decimal.Decimal, reason string, now time.Time) (*Client, int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	client, err := scanClient(tx.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE client_code = $1 FOR UPDATE`, clientCode))
	if err != nil {
		return nil, 0, err
	}
	if client.Blocked {
		return nil, 0, ErrAlreadyBlocked
	}

	client, err = scanClient(tx.QueryRow(ctx,
		`UPDATE clients
		 SET blocked = TRUE, blocked_amount = $2, blocked_reason = $3, blocked_at = $4, updated_at = NOW()
		 WHERE client_code = $1
		 RETURNING `+clientColumns,
		clientCode, amount, reason, now))
	if err != nil {
		return nil, 0, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE bookings
		 SET prev_status = status, prev_resource_id = resource_id, prev_color = color,
		     is_blocked = TRUE, blocked_by = 'CLIENT', blocked_reason = $2,
		     blocked_debt_amount = $3, blocked_at = $4,
		     status = 'BLOCKED', resource_id = 'UNASSIGNED', color = 'red',
		     updated_at = NOW()
		 WHERE client_code = $1
		   AND NOT is_blocked
		   AND status NOT IN ('CANCELLED', 'COMPLETED')`,
		clientCode, reason, amount, now)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return client, tag.RowsAffected(), nil
}

// UnblockWithCascade clears the client's block and releases its cascade
// blocked bookings back to the intake queue. Bookings blocked individually
// by a named person stay frozen.
func (r *Repository) UnblockWithCascade(ctx context.Context, clientCode string) (*Client, int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	client, err := scanClient(tx.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE client_code = $1 FOR UPDATE`, clientCode))
	if err != nil {
		return nil, 0, err
	}
	if !client.Blocked {
		return nil, 0, ErrNotBlocked
	}

	client, err = scanClient(tx.QueryRow(ctx,
		`UPDATE clients
		 SET blocked = FALSE, blocked_amount = NULL, blocked_reason = NULL, blocked_at = NULL, updated_at = NOW()
		 WHERE client_code = $1
		 RETURNING `+clientColumns,
		clientCode))
	if err != nil {
		return nil, 0, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE bookings
		 SET is_blocked = FALSE, blocked_by = NULL, blocked_reason = NULL,
		     blocked_debt_amount = NULL, blocked_at = NULL,
		     status = 'PENDING', resource_id = 'UNASSIGNED',
		     color = COALESCE(prev_color, 'blue'),
		     prev_status = NULL, prev_resource_id = NULL, prev_color = NULL,
		     updated_at = NOW()
		 WHERE client_code = $1
		   AND is_blocked
		   AND blocked_by = 'CLIENT'`,
		clientCode)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return client, tag.RowsAffected(), nil
}
