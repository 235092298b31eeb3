// Package persistence defines the decision journal and paper trade storage
// boundaries. The pipeline writes best-effort: a missing or failing journal
// never blocks an evaluation cycle.
package persistence

import (
	"context"
	"time"
)

// Decision is one journaled evaluation outcome: either an admitted setup or
// a typed rejection. One row per completed cycle.
type Decision struct {
	ID         int64                  `json:"id" db:"id"`
	Timestamp  time.Time              `json:"ts" db:"ts"`
	Symbol     string                 `json:"symbol" db:"symbol"`
	Outcome    string                 `json:"outcome" db:"outcome"` // "setup" or "rejected"
	Reason     *string                `json:"reason,omitempty" db:"reason"`
	SetupID    *string                `json:"setup_id,omitempty" db:"setup_id"`
	Direction  *string                `json:"direction,omitempty" db:"direction"`
	Confidence *int                   `json:"confidence,omitempty" db:"confidence"`
	RiskReward *float64               `json:"risk_reward,omitempty" db:"risk_reward"`
	Attributes map[string]interface{} `json:"attributes,omitempty" db:"attributes"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// PaperTrade is one simulated execution record, written when the paper
// engine opens a position and updated when it closes.
type PaperTrade struct {
	ID         int64      `json:"id" db:"id"`
	SetupID    string     `json:"setup_id" db:"setup_id"`
	Symbol     string     `json:"symbol" db:"symbol"`
	Direction  string     `json:"direction" db:"direction"`
	Entry      float64    `json:"entry" db:"entry"`
	StopLoss   float64    `json:"stop_loss" db:"stop_loss"`
	TakeProfit float64    `json:"take_profit" db:"take_profit"`
	Size       float64    `json:"size" db:"size"`
	OpenedAt   time.Time  `json:"opened_at" db:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	ExitPrice  *float64   `json:"exit_price,omitempty" db:"exit_price"`
	PnL        *float64   `json:"pnl,omitempty" db:"pnl"`
	Result     *string    `json:"result,omitempty" db:"result"` // "win", "loss"
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// DecisionsRepo journals evaluation outcomes.
type DecisionsRepo interface {
	// Insert appends one decision row.
	Insert(ctx context.Context, d Decision) error

	// ListBySymbol returns the most recent decisions for one symbol,
	// newest first.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]Decision, error)

	// ListRecent returns the most recent decisions across all symbols.
	ListRecent(ctx context.Context, limit int) ([]Decision, error)

	// CountByReason aggregates rejection counts per reason since the given
	// time, for the dashboard's rejection breakdown.
	CountByReason(ctx context.Context, since time.Time) (map[string]int64, error)
}

// TradesRepo stores paper executions.
type TradesRepo interface {
	// Insert records a newly opened paper trade and fills in its ID.
	Insert(ctx context.Context, t *PaperTrade) error

	// Close marks a trade closed with its exit price and realized result.
	Close(ctx context.Context, setupID string, exitPrice, pnl float64, result string, closedAt time.Time) error

	// ListRecent returns the most recent trades, newest first.
	ListRecent(ctx context.Context, limit int) ([]PaperTrade, error)
}
