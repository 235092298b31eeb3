package indicators

import "math"

// PriceBar represents OHLCV price data for one bar.
type PriceBar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SMA calculates the simple moving average of the trailing window.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMASeries calculates the exponential moving average series, seeded from
// the first value.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	ema := make([]float64, len(prices))
	ema[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		ema[i] = alpha*prices[i] + (1-alpha)*ema[i-1]
	}
	return ema
}

// EMAResult represents the result of an EMA calculation
type EMAResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateEMA calculates the exponential moving average for given price data
func CalculateEMA(prices []float64, period int) EMAResult {
	if len(prices) < period {
		return EMAResult{Value: 0, Period: period, IsValid: false, DataCount: len(prices)}
	}
	series := EMASeries(prices, period)
	return EMAResult{
		Value:     series[len(series)-1],
		Period:    period,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// RSIResult represents the result of RSI calculation
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateRSI calculates the Relative Strength Index for given price data
// using Wilder's smoothing.
func CalculateRSI(prices []float64, period int) RSIResult {
	if len(prices) < period+1 {
		return RSIResult{
			Value:     50.0, // Neutral RSI when insufficient data
			Period:    period,
			IsValid:   false,
			DataCount: len(prices),
		}
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	// Initial averages are a plain mean over the first period
	avgGain := 0.0
	avgLoss := 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing for the remainder
	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
	}

	if avgLoss == 0 {
		// No movement at all is neutral, not overbought.
		if avgGain == 0 {
			return RSIResult{Value: 50.0, Period: period, IsValid: true, DataCount: len(prices)}
		}
		return RSIResult{Value: 100.0, Period: period, IsValid: true, DataCount: len(prices)}
	}

	rs := avgGain / avgLoss
	return RSIResult{
		Value:     100.0 - (100.0 / (1.0 + rs)),
		Period:    period,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// ATRResult represents the result of ATR calculation
type ATRResult struct {
	Value     float64 `json:"value"`
	Average   float64 `json:"average"` // mean ATR over the trailing window, for regime detection
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateATR calculates the Average True Range for given OHLC data using
// Wilder's smoothing. Average is the mean of the smoothed series over the
// last avgWindow bars (or the whole series when shorter).
func CalculateATR(bars []PriceBar, period, avgWindow int) ATRResult {
	if len(bars) < period+1 {
		return ATRResult{Value: 0, Period: period, IsValid: false, DataCount: len(bars)}
	}

	trueRanges := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	series := make([]float64, 0, len(trueRanges)-period+1)
	series = append(series, atr)
	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		atr = atr*(1-alpha) + trueRanges[i]*alpha
		series = append(series, atr)
	}

	window := avgWindow
	if window <= 0 || window > len(series) {
		window = len(series)
	}
	avg := 0.0
	for _, v := range series[len(series)-window:] {
		avg += v
	}
	avg /= float64(window)

	return ATRResult{
		Value:     atr,
		Average:   avg,
		Period:    period,
		IsValid:   true,
		DataCount: len(bars),
	}
}

// MACDResult represents the result of MACD calculation
type MACDResult struct {
	Line          float64 `json:"line"`
	Signal        float64 `json:"signal"`
	Histogram     float64 `json:"histogram"`
	HistogramPrev float64 `json:"histogram_prev"`
	IsValid       bool    `json:"is_valid"`
	DataCount     int     `json:"data_count"`
}

// CalculateMACD calculates MACD line, signal line and histogram for the
// standard fast/slow/signal periods.
func CalculateMACD(prices []float64, fast, slow, signal int) MACDResult {
	if len(prices) < slow+signal {
		return MACDResult{IsValid: false, DataCount: len(prices)}
	}

	emaFast := EMASeries(prices, fast)
	emaSlow := EMASeries(prices, slow)
	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMASeries(macdLine, signal)

	last := len(prices) - 1
	return MACDResult{
		Line:          macdLine[last],
		Signal:        signalLine[last],
		Histogram:     macdLine[last] - signalLine[last],
		HistogramPrev: macdLine[last-1] - signalLine[last-1],
		IsValid:       true,
		DataCount:     len(prices),
	}
}

// BollingerResult represents the result of Bollinger Band calculation
type BollingerResult struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Width     float64 `json:"width"` // (upper-lower)/middle
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateBollinger calculates Bollinger Bands over the trailing window.
func CalculateBollinger(prices []float64, period int, stdDev float64) BollingerResult {
	if len(prices) < period {
		return BollingerResult{IsValid: false, DataCount: len(prices)}
	}

	window := prices[len(prices)-period:]
	mean := 0.0
	for _, p := range window {
		mean += p
	}
	mean /= float64(period)

	variance := 0.0
	for _, p := range window {
		variance += (p - mean) * (p - mean)
	}
	sd := math.Sqrt(variance / float64(period))

	upper := mean + stdDev*sd
	lower := mean - stdDev*sd
	width := 0.0
	if mean != 0 {
		width = (upper - lower) / mean
	}

	return BollingerResult{
		Upper:     upper,
		Middle:    mean,
		Lower:     lower,
		Width:     width,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// VWAPResult represents the result of VWAP calculation
type VWAPResult struct {
	Value     float64 `json:"value"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateVWAP calculates the volume weighted average price over the
// history window. Bars without volume count as one unit each so the value
// degrades to a typical-price mean on volume-less feeds.
func CalculateVWAP(bars []PriceBar) VWAPResult {
	if len(bars) == 0 {
		return VWAPResult{IsValid: false}
	}

	cumTPV := 0.0
	cumVol := 0.0
	for _, b := range bars {
		vol := b.Volume
		if vol <= 0 {
			vol = 1
		}
		typical := (b.High + b.Low + b.Close) / 3
		cumTPV += typical * vol
		cumVol += vol
	}

	return VWAPResult{Value: cumTPV / cumVol, IsValid: true, DataCount: len(bars)}
}

// PatternResult represents the outcome of candlestick pattern detection on
// the last two bars. Bias is positive for bullish patterns, negative for
// bearish ones; engulfing patterns weigh 3, pin bars 1.
type PatternResult struct {
	Bias    int    `json:"bias"`
	Name    string `json:"name"`
	IsValid bool   `json:"is_valid"`
}

// DetectPattern checks the last two bars for engulfing and pin bar patterns.
func DetectPattern(bars []PriceBar) PatternResult {
	if len(bars) < 2 {
		return PatternResult{IsValid: false}
	}

	cur := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	// Engulfing: current body fully swallows the previous opposite body
	if cur.Close > cur.Open && prev.Close < prev.Open &&
		cur.Close > prev.Open && cur.Open < prev.Close {
		return PatternResult{Bias: 3, Name: "bullish_engulfing", IsValid: true}
	}
	if cur.Close < cur.Open && prev.Close > prev.Open &&
		cur.Close < prev.Open && cur.Open > prev.Close {
		return PatternResult{Bias: -3, Name: "bearish_engulfing", IsValid: true}
	}

	body := math.Abs(cur.Close - cur.Open)
	lowerWick := math.Min(cur.Close, cur.Open) - cur.Low
	upperWick := cur.High - math.Max(cur.Close, cur.Open)

	if lowerWick > 2*body && upperWick < body {
		return PatternResult{Bias: 1, Name: "bullish_pinbar", IsValid: true}
	}
	if upperWick > 2*body && lowerWick < body {
		return PatternResult{Bias: -1, Name: "shooting_star", IsValid: true}
	}

	return PatternResult{Bias: 0, Name: "", IsValid: true}
}
