package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup; the tables are small enough
// that versioned migrations would be overhead without benefit yet.
const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          BIGSERIAL PRIMARY KEY,
	ts          TIMESTAMPTZ NOT NULL,
	symbol      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	reason      TEXT,
	setup_id    TEXT,
	direction   TEXT,
	confidence  INT,
	risk_reward DOUBLE PRECISION,
	attributes  JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_decisions_symbol_ts ON decisions (symbol, ts DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_reason ON decisions (reason) WHERE reason IS NOT NULL;

CREATE TABLE IF NOT EXISTS paper_trades (
	id          BIGSERIAL PRIMARY KEY,
	setup_id    TEXT NOT NULL UNIQUE,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry       DOUBLE PRECISION NOT NULL,
	stop_loss   DOUBLE PRECISION NOT NULL,
	take_profit DOUBLE PRECISION NOT NULL,
	size        DOUBLE PRECISION NOT NULL,
	opened_at   TIMESTAMPTZ NOT NULL,
	closed_at   TIMESTAMPTZ,
	exit_price  DOUBLE PRECISION,
	pnl         DOUBLE PRECISION,
	result      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_paper_trades_opened ON paper_trades (opened_at DESC);
`

// EnsureSchema creates the journal tables when they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
