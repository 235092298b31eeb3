// Package safety holds the process-wide safety state and the admission
// gate: the one place a candidate signal can become a TradeSetup.
package safety

import (
	"sync/atomic"
	"time"
)

// Limits are the active risk thresholds, captured into each State snapshot
// so a cycle evaluates against one consistent set.
type Limits struct {
	RiskPerTrade              float64 `json:"risk_per_trade"`
	MaxDrawdown               float64 `json:"max_drawdown"`
	MinConfidence             int     `json:"min_confidence"`
	MinRiskReward             float64 `json:"min_risk_reward"`
	TargetRiskReward          float64 `json:"target_risk_reward"`
	DegradedConfidenceCeiling int     `json:"ai_confidence_ceiling_on_degraded_retrieval"`
}

// State is one immutable safety snapshot: gateway health, account figures
// and the thresholds in force when it was taken. It is written by the
// single poller goroutine and read by any number of concurrent cycles.
type State struct {
	Connected     bool      `json:"connected"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	HasAccount    bool      `json:"has_account"`
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	DrawdownPct   float64   `json:"drawdown_pct"`
	Limits        Limits    `json:"limits"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Holder swaps State snapshots atomically: one writer, many readers, no
// field-level locks. Reads between polls return identical values.
type Holder struct {
	v atomic.Pointer[State]
}

// NewHolder creates a holder seeded with the initial state.
func NewHolder(initial State) *Holder {
	h := &Holder{}
	h.v.Store(&initial)
	return h
}

// Current returns the latest snapshot by value.
func (h *Holder) Current() State {
	return *h.v.Load()
}

// Publish replaces the snapshot. Only the poller calls this.
func (h *Holder) Publish(s State) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	h.v.Store(&s)
}

// Drawdown computes the drawdown percentage of equity against balance.
func Drawdown(balance, equity float64) float64 {
	if balance <= 0 {
		return 0
	}
	dd := (balance - equity) / balance * 100
	if dd < 0 {
		return 0
	}
	return dd
}
