package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictdesk/engine/internal/contracts"
)

// Repository is the local order journal. It records what was submitted
// and how each settlement-affecting action resolved. The journal is an
// audit aid, not a source of truth: the exchange owns order state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new order journal repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the journal table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS order_journal (
			order_id     TEXT PRIMARY KEY,
			client_id    TEXT NOT NULL,
			token_id     TEXT NOT NULL,
			side         TEXT NOT NULL,
			tif          TEXT NOT NULL,
			shares       DOUBLE PRECISION NOT NULL,
			price        DOUBLE PRECISION NOT NULL,
			notional     DOUBLE PRECISION NOT NULL,
			expiration   BIGINT NOT NULL,
			settlement   TEXT NOT NULL DEFAULT 'PENDING',
			submitted_at TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create order journal schema: %w", err)
	}

	return nil
}

// SaveSubmitted records a freshly submitted order.
func (r *Repository) SaveSubmitted(ctx context.Context, order *contracts.SubmittedOrder) error {
	query := `
		INSERT INTO order_journal (
			order_id, client_id, token_id, side, tif, shares, price,
			notional, expiration, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		order.OrderID, order.ClientID, order.TokenID, order.Side, order.TIF,
		order.Shares, order.Price, order.Notional, order.Expiration,
		order.SubmittedAt, order.SubmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save submitted order: %w", err)
	}

	return nil
}

// MarkSettlement records how a settlement-affecting action resolved
// (CONFIRMED or TIMED_OUT).
func (r *Repository) MarkSettlement(ctx context.Context, orderID string, outcome string) error {
	query := `
		UPDATE order_journal
		SET settlement = $1, updated_at = $2
		WHERE order_id = $3
	`

	_, err := r.pool.Exec(ctx, query, outcome, time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark settlement: %w", err)
	}

	return nil
}

// JournalEntry is a stored order journal row.
type JournalEntry struct {
	OrderID     string
	TokenID     string
	Side        contracts.Side
	TIF         contracts.TimeInForce
	Shares      float64
	Price       float64
	Notional    float64
	Settlement  string
	SubmittedAt time.Time
}

// ListRecent returns the latest journal entries, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `
		SELECT order_id, token_id, side, tif, shares, price, notional,
		       settlement, submitted_at
		FROM order_journal
		ORDER BY submitted_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]JournalEntry, 0, limit)
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(
			&e.OrderID, &e.TokenID, &e.Side, &e.TIF, &e.Shares,
			&e.Price, &e.Notional, &e.Settlement, &e.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
