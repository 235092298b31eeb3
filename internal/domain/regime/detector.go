package regime

import "math"

// Regime classifies the current market character. The classification feeds
// the stop multiplier used for level placement and is reported in the
// reasoning trail.
type Regime string

const (
	TrendingStrong Regime = "TRENDING_STRONG"
	TrendingWeak   Regime = "TRENDING_WEAK"
	Ranging        Regime = "RANGING"
	Volatile       Regime = "VOLATILE"
	Breakout       Regime = "BREAKOUT"
)

// Inputs are the scale-free measurements the detector classifies on.
// EMASpreadPct is (EMA20-EMA50)/price*100; ATRRatio is current ATR over its
// trailing average; BBWidthRatio is current band width over its average.
type Inputs struct {
	EMASpreadPct float64
	ATRRatio     float64
	BBWidthRatio float64
}

// Detect classifies the market regime. Evaluated top-down: volatility
// expansion first, then momentum expansion, then trend strength.
func Detect(in Inputs) Regime {
	spread := math.Abs(in.EMASpreadPct)

	if in.ATRRatio > 1.2 && in.BBWidthRatio > 1.1 {
		return Volatile
	}
	if spread > 0.5 && in.ATRRatio > 1.0 {
		return Breakout
	}
	if spread > 0.5 {
		return TrendingStrong
	}
	if spread > 0.3 {
		return TrendingWeak
	}
	return Ranging
}

// StopMultiplier returns the ATR multiple used for stop placement in this
// regime: tight in strong trends and ranges, wide for breakouts and
// volatility expansions.
func StopMultiplier(r Regime) float64 {
	switch r {
	case TrendingStrong:
		return 1.5
	case TrendingWeak:
		return 2.0
	case Breakout, Volatile:
		return 2.5
	default:
		return 1.5
	}
}
