package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRSI_InsufficientData(t *testing.T) {
	result := CalculateRSI([]float64{1.0, 1.1, 1.2}, 14)

	assert.False(t, result.IsValid)
	assert.Equal(t, 50.0, result.Value, "insufficient data should return neutral RSI")
	assert.Equal(t, 3, result.DataCount)
}

func TestCalculateRSI_AllGains(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	result := CalculateRSI(prices, 14)

	require.True(t, result.IsValid)
	assert.Equal(t, 100.0, result.Value, "monotonically rising prices have no losses")
}

func TestCalculateRSI_FlatPricesNeutral(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 1.1
	}

	result := CalculateRSI(prices, 14)

	require.True(t, result.IsValid)
	assert.Equal(t, 50.0, result.Value, "no gains and no losses is neutral, not overbought")
}

func TestCalculateRSI_Bounded(t *testing.T) {
	prices := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41,
		46.22, 45.64, 46.21, 46.25, 45.71, 46.45, 45.78, 45.35, 44.03, 44.18,
		44.22, 44.57}

	result := CalculateRSI(prices, 14)

	require.True(t, result.IsValid)
	assert.Greater(t, result.Value, 0.0)
	assert.Less(t, result.Value, 100.0)
}

func TestCalculateEMA(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10}

	result := CalculateEMA(prices, 3)

	require.True(t, result.IsValid)
	assert.InDelta(t, 10.0, result.Value, 1e-9, "EMA of a constant series is the constant")

	short := CalculateEMA([]float64{10, 11}, 5)
	assert.False(t, short.IsValid)
}

func TestCalculateATR_ConstantRange(t *testing.T) {
	bars := make([]PriceBar, 40)
	for i := range bars {
		bars[i] = PriceBar{Open: 100, High: 101, Low: 100, Close: 100.5, Volume: 1}
	}

	result := CalculateATR(bars, 14, 20)

	require.True(t, result.IsValid)
	assert.InDelta(t, 1.0, result.Value, 1e-9, "true range is constant at 1.0")
	assert.InDelta(t, 1.0, result.Average, 1e-9)
}

func TestCalculateATR_InsufficientData(t *testing.T) {
	result := CalculateATR([]PriceBar{{High: 1, Low: 0.5, Close: 0.8}}, 14, 20)
	assert.False(t, result.IsValid)
}

func TestCalculateMACD(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}

	result := CalculateMACD(prices, 12, 26, 9)

	require.True(t, result.IsValid)
	assert.Greater(t, result.Line, 0.0, "steady uptrend keeps the fast EMA above the slow")
}

func TestCalculateBollinger(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 50
	}
	prices[24] = 50 // keep flat

	result := CalculateBollinger(prices, 20, 2.0)

	require.True(t, result.IsValid)
	assert.InDelta(t, 50.0, result.Middle, 1e-9)
	assert.InDelta(t, 50.0, result.Upper, 1e-9, "zero variance collapses the bands")
	assert.InDelta(t, 0.0, result.Width, 1e-9)
}

func TestCalculateVWAP(t *testing.T) {
	bars := []PriceBar{
		{High: 12, Low: 10, Close: 11, Volume: 100},
		{High: 14, Low: 12, Close: 13, Volume: 300},
	}

	result := CalculateVWAP(bars)

	require.True(t, result.IsValid)
	// (11*100 + 13*300) / 400
	assert.InDelta(t, 12.5, result.Value, 1e-9)
}

func TestDetectPattern_BullishEngulfing(t *testing.T) {
	bars := []PriceBar{
		{Open: 102, High: 103, Low: 99, Close: 100},  // bearish
		{Open: 99.5, High: 104, Low: 99, Close: 103}, // engulfs it
	}

	result := DetectPattern(bars)

	require.True(t, result.IsValid)
	assert.Equal(t, 3, result.Bias)
	assert.Equal(t, "bullish_engulfing", result.Name)
}

func TestDetectPattern_ShootingStar(t *testing.T) {
	bars := []PriceBar{
		{Open: 100, High: 101, Low: 99, Close: 100.5},
		{Open: 100, High: 110, Low: 99.9, Close: 100.2},
	}

	result := DetectPattern(bars)

	require.True(t, result.IsValid)
	assert.Equal(t, -1, result.Bias)
	assert.Equal(t, "shooting_star", result.Name)
}

func TestDetectPattern_TooFewBars(t *testing.T) {
	result := DetectPattern([]PriceBar{{Open: 1, High: 2, Low: 0.5, Close: 1.5}})
	assert.False(t, result.IsValid)
}
