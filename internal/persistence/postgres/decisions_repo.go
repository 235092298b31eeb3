// Package postgres implements the persistence repositories over PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/signalrun/internal/persistence"
)

// Connect opens and pings a PostgreSQL pool.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// decisionsRepo implements DecisionsRepo for PostgreSQL.
type decisionsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDecisionsRepo creates a PostgreSQL decisions journal.
func NewDecisionsRepo(db *sqlx.DB, timeout time.Duration) persistence.DecisionsRepo {
	return &decisionsRepo{db: db, timeout: timeout}
}

// Insert appends one decision row.
func (r *decisionsRepo) Insert(ctx context.Context, d persistence.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	attributesJSON, err := json.Marshal(d.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO decisions (ts, symbol, outcome, reason, setup_id, direction, confidence, risk_reward, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		d.Timestamp, d.Symbol, d.Outcome, d.Reason, d.SetupID,
		d.Direction, d.Confidence, d.RiskReward, attributesJSON).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate decision: %w", err)
		}
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// ListBySymbol retrieves recent decisions for one symbol, newest first.
func (r *decisionsRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]persistence.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, symbol, outcome, reason, setup_id, direction, confidence, risk_reward, attributes, created_at
		FROM decisions
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions by symbol: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// ListRecent retrieves recent decisions across all symbols.
func (r *decisionsRepo) ListRecent(ctx context.Context, limit int) ([]persistence.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, symbol, outcome, reason, setup_id, direction, confidence, risk_reward, attributes, created_at
		FROM decisions
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent decisions: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// CountByReason aggregates rejection counts per reason since a given time.
func (r *decisionsRepo) CountByReason(ctx context.Context, since time.Time) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT reason, COUNT(*) AS n
		FROM decisions
		WHERE outcome = 'rejected' AND reason IS NOT NULL AND ts >= $1
		GROUP BY reason`

	rows, err := r.db.QueryxContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rejection count: %w", err)
		}
		counts[reason] = n
	}
	return counts, rows.Err()
}

func scanDecisions(rows *sqlx.Rows) ([]persistence.Decision, error) {
	var out []persistence.Decision
	for rows.Next() {
		var d persistence.Decision
		var attributesJSON []byte
		err := rows.Scan(&d.ID, &d.Timestamp, &d.Symbol, &d.Outcome, &d.Reason,
			&d.SetupID, &d.Direction, &d.Confidence, &d.RiskReward,
			&attributesJSON, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if len(attributesJSON) > 0 {
			if err := json.Unmarshal(attributesJSON, &d.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
