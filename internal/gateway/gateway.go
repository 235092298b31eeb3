// Package gateway defines the broker/exchange connectivity boundary the
// core consumes, and the poller that turns it into safety state snapshots.
package gateway

import (
	"context"
	"time"

	"github.com/sawpanic/signalrun/internal/domain/signal"
)

// Health is the gateway connection status.
type Health struct {
	Connected     bool      `json:"connected"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// MarketGateway is the abstract market-data boundary. Implementations own
// reconnection and feed plumbing; the core only polls.
type MarketGateway interface {
	// GetSnapshot captures the current market view for one symbol.
	GetSnapshot(ctx context.Context, symbol string) (signal.MarketSnapshot, error)
	// Health reports the connection status without blocking.
	Health() Health
}

// Account is one account observation. Valid is false when the source could
// not produce trustworthy figures this poll.
type Account struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
	Valid   bool    `json:"valid"`
}

// AccountSource produces account figures for the poller; in paper mode the
// execution engine's ledger backs it.
type AccountSource interface {
	Account(ctx context.Context) (Account, error)
}
