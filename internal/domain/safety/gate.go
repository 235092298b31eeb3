package safety

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/signalrun/internal/domain/signal"
)

// GateState is the tri-state the gate reports each cycle. It is recomputed
// fresh from the current State and the cycle flags; nothing is carried
// between cycles.
type GateState string

const (
	// Blocked: the gateway is down, drawdown breached its limit, or no
	// valid account data exists. Nothing trades and the reasoning backend
	// is not consulted.
	Blocked GateState = "BLOCKED"
	// Degraded: connection healthy but retrieval or the verdict came back
	// degraded or invalid this cycle.
	Degraded GateState = "DEGRADED"
	// Armed: healthy connection, drawdown within limits, valid verdict.
	Armed GateState = "ARMED"
)

// Flags carries the per-cycle degradation signals into the transition
// function.
type Flags struct {
	RetrievalDegraded bool
	VerdictValid      bool
}

// Resolve is the stateless transition function over the current safety
// state and cycle flags.
func Resolve(st State, f Flags) GateState {
	if !st.Connected || !st.HasAccount || st.DrawdownPct >= st.Limits.MaxDrawdown {
		return Blocked
	}
	if f.RetrievalDegraded || !f.VerdictValid {
		return Degraded
	}
	return Armed
}

// Reason is the typed rejection code. Every failed admission condition maps
// to exactly one reason; a generic failure never leaves the gate.
type Reason string

const (
	ReasonGatewayDown       Reason = "GatewayDown"
	ReasonMaxDrawdown       Reason = "MaxDrawdown"
	ReasonNoAccountData     Reason = "NoAccountData"
	ReasonNotArmed          Reason = "NotArmed"
	ReasonInvalidVerdict    Reason = "InvalidVerdict"
	ReasonLowConfidence     Reason = "LowConfidence"
	ReasonLowRiskReward     Reason = "LowRiskReward"
	ReasonDirectionConflict Reason = "DirectionConflict"
	ReasonNoSignal          Reason = "NoSignal"
	ReasonRiskComputation   Reason = "RiskComputation"
	ReasonCooldown          Reason = "Cooldown"
	ReasonWideSpread        Reason = "WideSpread"
	ReasonSuperseded        Reason = "Superseded"
)

// Rejection is the normal, frequent negative outcome of a cycle. It is a
// value, never an error.
type Rejection struct {
	Symbol string    `json:"symbol"`
	Reason Reason    `json:"reason"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s (%s)", r.Symbol, r.Reason, r.Detail)
}

// Reject builds a Rejection with a formatted detail.
func Reject(symbol string, reason Reason, format string, args ...any) *Rejection {
	return &Rejection{
		Symbol: symbol,
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
		At:     time.Now().UTC(),
	}
}

// Plan is the numeric risk plan computed for the candidate before
// admission: levels, size and the risk/reward the gate checks.
type Plan struct {
	Entry       float64
	StopLoss    float64
	TakeProfit  float64
	TakeProfits [3]float64
	Size        float64
	RiskReward  float64
}

// AdmitInput bundles everything one admission decision needs. All fields
// are consistent per-cycle values; the gate never reaches for live state.
// Degradation flags stay out: their only admission-relevant effect is the
// confidence ceiling applied before the verdict arrives here.
type AdmitInput struct {
	State   State
	Signal  signal.QuantSignal
	Verdict signal.Verdict
	Plan    Plan
}

// Admit applies the admission conditions in order and returns either the
// final TradeSetup or the Rejection of the first failed condition.
//
// Degraded retrieval alone does not block admission: its effect is the
// confidence ceiling applied upstream, so a capped verdict either clears
// min_confidence or fails here as LowConfidence.
func Admit(in AdmitInput) (*signal.TradeSetup, *Rejection) {
	st := in.State
	sym := in.Signal.Symbol

	if !st.Connected {
		return nil, Reject(sym, ReasonGatewayDown, "gateway connection unhealthy")
	}
	if !st.HasAccount {
		return nil, Reject(sym, ReasonNoAccountData, "no valid account data")
	}
	if st.DrawdownPct >= st.Limits.MaxDrawdown {
		return nil, Reject(sym, ReasonMaxDrawdown, "drawdown %.2f%% at or above limit %.2f%%", st.DrawdownPct, st.Limits.MaxDrawdown)
	}
	if in.Signal.Direction == signal.DirectionNone {
		return nil, Reject(sym, ReasonNoSignal, "quant ensemble voted no direction")
	}
	if !in.Verdict.Valid {
		return nil, Reject(sym, ReasonInvalidVerdict, "verdict invalid: %s", in.Verdict.Rationale)
	}
	if in.Verdict.Confidence < st.Limits.MinConfidence {
		return nil, Reject(sym, ReasonLowConfidence, "confidence %d below minimum %d", in.Verdict.Confidence, st.Limits.MinConfidence)
	}
	if in.Signal.Direction.Inverts(in.Verdict.Action) {
		return nil, Reject(sym, ReasonDirectionConflict, "quant %s vs ai %s: opposite directions never trade", in.Signal.Direction, in.Verdict.Action)
	}
	if !in.Signal.Direction.Agrees(in.Verdict.Action) {
		return nil, Reject(sym, ReasonDirectionConflict, "ai downgraded %s to %s", in.Signal.Direction, in.Verdict.Action)
	}
	// Small epsilon so 1.499 vs 1.50 float noise does not flap the gate.
	if in.Plan.RiskReward < st.Limits.MinRiskReward-0.01 {
		return nil, Reject(sym, ReasonLowRiskReward, "risk/reward %.2f below minimum %.2f", in.Plan.RiskReward, st.Limits.MinRiskReward)
	}

	reasoning := append([]string{}, in.Signal.Reasons()...)
	reasoning = append(reasoning, fmt.Sprintf("regime: %s", in.Signal.Regime))
	if in.Verdict.Rationale != "" {
		reasoning = append(reasoning, "ai: "+in.Verdict.Rationale)
	}

	return &signal.TradeSetup{
		ID:              uuid.New().String(),
		Symbol:          sym,
		Direction:       in.Signal.Direction,
		Entry:           in.Plan.Entry,
		StopLoss:        in.Plan.StopLoss,
		TakeProfit:      in.Plan.TakeProfit,
		TakeProfits:     in.Plan.TakeProfits,
		Size:            in.Plan.Size,
		RiskReward:      in.Plan.RiskReward,
		Confidence:      (in.Signal.Confidence + in.Verdict.Confidence) / 2,
		QuantConfidence: in.Signal.Confidence,
		AIConfidence:    in.Verdict.Confidence,
		Reasoning:       reasoning,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
