package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/signalrun/internal/persistence"
)

// tradesRepo implements TradesRepo for PostgreSQL.
type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo creates a PostgreSQL paper trades repository.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) persistence.TradesRepo {
	return &tradesRepo{db: db, timeout: timeout}
}

// Insert records a newly opened paper trade and fills in its ID.
func (r *tradesRepo) Insert(ctx context.Context, t *persistence.PaperTrade) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO paper_trades (setup_id, symbol, direction, entry, stop_loss, take_profit, size, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		t.SetupID, t.Symbol, t.Direction, t.Entry, t.StopLoss,
		t.TakeProfit, t.Size, t.OpenedAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate setup id %s: %w", t.SetupID, err)
		}
		return fmt.Errorf("failed to insert paper trade: %w", err)
	}
	return nil
}

// Close marks a trade closed with its realized result.
func (r *tradesRepo) Close(ctx context.Context, setupID string, exitPrice, pnl float64, result string, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE paper_trades
		SET closed_at = $2, exit_price = $3, pnl = $4, result = $5
		WHERE setup_id = $1 AND closed_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, setupID, closedAt, exitPrice, pnl, result)
	if err != nil {
		return fmt.Errorf("failed to close paper trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read close result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no open paper trade for setup %s", setupID)
	}
	return nil
}

// ListRecent returns the most recent trades, newest first.
func (r *tradesRepo) ListRecent(ctx context.Context, limit int) ([]persistence.PaperTrade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, setup_id, symbol, direction, entry, stop_loss, take_profit, size,
		       opened_at, closed_at, exit_price, pnl, result, created_at
		FROM paper_trades
		ORDER BY opened_at DESC
		LIMIT $1`

	var out []persistence.PaperTrade
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query recent paper trades: %w", err)
	}
	return out, nil
}
