package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/sawpanic/signalrun/internal/domain/indicators"
	"github.com/sawpanic/signalrun/internal/domain/regime"
)

// MinHistoryBars is the smallest candle window a snapshot can be built
// from. Indicators needing longer windows (EMA200) simply mark the set
// incomplete and their rules abstain.
const MinHistoryBars = 50

// ErrInsufficientHistory is returned when the candle window is too short
// to compute any meaningful indicator set.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// BuildSnapshot captures one immutable per-cycle market view: the tick, the
// candle window and the full indicator set computed from it.
func BuildSnapshot(tick Tick, candles []Candle) (MarketSnapshot, error) {
	if len(candles) < MinHistoryBars {
		return MarketSnapshot{}, fmt.Errorf("%w: %d bars for %s, need %d", ErrInsufficientHistory, len(candles), tick.Symbol, MinHistoryBars)
	}

	closes := make([]float64, len(candles))
	bars := make([]indicators.PriceBar, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		bars[i] = indicators.PriceBar{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}

	ema20 := indicators.CalculateEMA(closes, 20)
	ema50 := indicators.CalculateEMA(closes, 50)
	ema200 := indicators.CalculateEMA(closes, 200)
	rsi := indicators.CalculateRSI(closes, 14)
	macd := indicators.CalculateMACD(closes, 12, 26, 9)
	bb := indicators.CalculateBollinger(closes, 20, 2.0)
	vwap := indicators.CalculateVWAP(bars)
	atr := indicators.CalculateATR(bars, 14, 50)

	ind := IndicatorSet{
		EMA20:    ema20.Value,
		EMA50:    ema50.Value,
		EMA200:   ema200.Value,
		RSI:      rsi.Value,
		MACD:     macd.Line,
		MACDSig:  macd.Signal,
		Hist:     macd.Histogram,
		HistPrev: macd.HistogramPrev,
		BBUpper:  bb.Upper,
		BBMiddle: bb.Middle,
		BBLower:  bb.Lower,
		BBWidth:  bb.Width,
		VWAP:     vwap.Value,
		ATR:      atr.Value,
		ATRAvg:   atr.Average,
		Complete: ema200.IsValid && rsi.IsValid && macd.IsValid && bb.IsValid && atr.IsValid,
	}

	last := tick.Last
	if last == 0 {
		last = closes[len(closes)-1]
	}

	spreadPct := 0.0
	if last > 0 {
		spreadPct = (ind.EMA20 - ind.EMA50) / last * 100
	}
	atrRatio := 1.0
	if ind.ATRAvg > 0 {
		atrRatio = ind.ATR / ind.ATRAvg
	}
	// Band width relative to the slow-window mean width; without a second
	// width series, the middle-band ratio approximates it well enough for
	// classification.
	bbRatio := 1.0
	if avg := avgWidth(closes); avg > 0 {
		bbRatio = ind.BBWidth / avg
	}

	ts := tick.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return MarketSnapshot{
		Symbol:     tick.Symbol,
		Timestamp:  ts,
		Bid:        tick.Bid,
		Ask:        tick.Ask,
		Last:       last,
		Candles:    candles,
		Indicators: ind,
		Regime: regime.Detect(regime.Inputs{
			EMASpreadPct: spreadPct,
			ATRRatio:     atrRatio,
			BBWidthRatio: bbRatio,
		}),
	}, nil
}

// avgWidth is the mean Bollinger width over rolling 20-bar windows of the
// trailing 50 closes.
func avgWidth(closes []float64) float64 {
	const window = 20
	start := len(closes) - 50
	if start < 0 {
		start = 0
	}
	sum := 0.0
	n := 0
	for end := start + window; end <= len(closes); end++ {
		bb := indicators.CalculateBollinger(closes[:end], window, 2.0)
		if bb.IsValid {
			sum += bb.Width
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
