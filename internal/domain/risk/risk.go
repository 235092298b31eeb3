// Package risk holds the pure numeric risk functions: position sizing from
// equity, stop/take-profit placement from ATR, and risk/reward arithmetic.
// Nothing here performs I/O; callers convert the typed errors into cycle
// rejections at the pipeline boundary.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/sawpanic/signalrun/internal/domain/signal"
)

var (
	// ErrInvalidRiskInput marks sizing inputs that cannot produce a
	// tradable quantity: non-positive stop distance, risk percentage or
	// equity, or an equity too small to clear one lot step.
	ErrInvalidRiskInput = errors.New("invalid risk input")

	// ErrDivisionByZero marks a risk/reward computation with a zero stop
	// distance.
	ErrDivisionByZero = errors.New("division by zero")
)

// DefaultLotStep is the minimum tradable increment when the instrument does
// not declare one.
const DefaultLotStep = 0.01

// Instrument carries the contract economics that translate a price stop
// distance into account-currency risk per unit of quantity.
type Instrument struct {
	TickSize  float64 // minimum price increment
	TickValue float64 // account-currency value of one tick, per unit
	LotStep   float64 // minimum tradable increment
}

// DefaultInstrument models a five-decimal FX quote: a tick of 0.00001 worth
// one cent per unit, traded in 0.01 increments. The reference sizing under
// it: equity 10000, risk 1%, stop distance 0.0015 sizes to 66.66 units.
var DefaultInstrument = Instrument{TickSize: 0.00001, TickValue: 0.01, LotStep: DefaultLotStep}

// SizePosition computes the quantity that risks riskPct percent of equity
// over the given stop distance. Each unit of quantity risks
// stopDistance/TickSize ticks at TickValue apiece; the result is floored to
// the instrument lot step.
func SizePosition(equity, riskPct, stopDistance float64, inst Instrument) (float64, error) {
	if stopDistance <= 0 {
		return 0, fmt.Errorf("%w: stop distance %.6f must be positive", ErrInvalidRiskInput, stopDistance)
	}
	if riskPct <= 0 {
		return 0, fmt.Errorf("%w: risk percentage %.4f must be positive", ErrInvalidRiskInput, riskPct)
	}
	if equity <= 0 {
		return 0, fmt.Errorf("%w: equity %.2f must be positive", ErrInvalidRiskInput, equity)
	}
	if inst.TickSize <= 0 || inst.TickValue <= 0 {
		inst.TickSize = DefaultInstrument.TickSize
		inst.TickValue = DefaultInstrument.TickValue
	}
	if inst.LotStep <= 0 {
		inst.LotStep = DefaultLotStep
	}

	riskAmount := equity * riskPct / 100.0
	perUnitRisk := stopDistance / inst.TickSize * inst.TickValue
	qty := riskAmount / perUnitRisk

	// Floor to the lot step; an equity too small for even one step is a
	// sizing failure, not a zero-size trade.
	qty = math.Floor(qty/inst.LotStep) * inst.LotStep
	if qty < inst.LotStep {
		return 0, fmt.Errorf("%w: equity %.2f too small for stop distance %.6f", ErrInvalidRiskInput, equity, stopDistance)
	}

	return qty, nil
}

// Levels is the computed stop/take-profit placement for one setup. The
// ladder holds TP1/TP2/TP3; TakeProfit is the primary target (TP2), the one
// the risk/reward contract is computed against.
type Levels struct {
	StopLoss     float64
	TakeProfit   float64
	TakeProfits  [3]float64
	StopDistance float64
}

// ComputeLevels places the stop stopMult*ATR away from entry (below for BUY,
// above for SELL)
// and the primary take-profit at rrTarget times the stop distance beyond
// entry. TP1 and TP3 scale the primary target by 0.75 and 1.5. Deterministic
// and side-effect free.
func ComputeLevels(entry float64, direction signal.Direction, atr, stopMult, rrTarget float64) (Levels, error) {
	if atr <= 0 {
		return Levels{}, fmt.Errorf("%w: atr %.6f must be positive", ErrInvalidRiskInput, atr)
	}
	if stopMult <= 0 || rrTarget <= 0 {
		return Levels{}, fmt.Errorf("%w: stop multiplier %.2f and rr target %.2f must be positive", ErrInvalidRiskInput, stopMult, rrTarget)
	}

	stopDistance := atr * stopMult
	tp2Distance := stopDistance * rrTarget
	tp1Distance := tp2Distance * 0.75
	tp3Distance := tp2Distance * 1.5

	switch direction {
	case signal.DirectionBuy:
		return Levels{
			StopLoss:     entry - stopDistance,
			TakeProfit:   entry + tp2Distance,
			TakeProfits:  [3]float64{entry + tp1Distance, entry + tp2Distance, entry + tp3Distance},
			StopDistance: stopDistance,
		}, nil
	case signal.DirectionSell:
		return Levels{
			StopLoss:     entry + stopDistance,
			TakeProfit:   entry - tp2Distance,
			TakeProfits:  [3]float64{entry - tp1Distance, entry - tp2Distance, entry - tp3Distance},
			StopDistance: stopDistance,
		}, nil
	default:
		return Levels{}, fmt.Errorf("%w: direction %q has no levels", ErrInvalidRiskInput, direction)
	}
}

// RiskReward returns the take-profit distance over the stop distance.
func RiskReward(entry, stopLoss, takeProfit float64) (float64, error) {
	stopDistance := math.Abs(entry - stopLoss)
	if stopDistance == 0 {
		return 0, fmt.Errorf("%w: entry %.6f equals stop loss", ErrDivisionByZero, entry)
	}
	return math.Abs(takeProfit-entry) / stopDistance, nil
}
