package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain/regime"
)

// trendingCandles builds a steadily rising series long enough for the full
// EMA stack.
func trendingCandles(n int, start, step float64) []Candle {
	candles := make([]Candle, n)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	price := start
	for i := range candles {
		candles[i] = Candle{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + step*1.2,
			Low:    price - step*0.4,
			Close:  price + step,
			Volume: 100,
		}
		price += step
	}
	return candles
}

func flatCandles(n int, price float64) []Candle {
	candles := make([]Candle, n)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = Candle{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 0.0001,
			Low:    price - 0.0001,
			Close:  price,
			Volume: 100,
		}
	}
	return candles
}

func TestBuildSnapshot_RejectsShortHistory(t *testing.T) {
	tick := Tick{Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001, Last: 1.1000}
	_, err := BuildSnapshot(tick, trendingCandles(10, 1.09, 0.0001))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestGenerate_UptrendVotesBuy(t *testing.T) {
	candles := trendingCandles(250, 1.0000, 0.0005)
	last := candles[len(candles)-1].Close
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: last - 0.0001, Ask: last + 0.0001, Last: last}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)
	require.True(t, snap.Indicators.Complete)

	sig := NewGenerator(DefaultGeneratorConfig()).Generate(snap)

	assert.Equal(t, DirectionBuy, sig.Direction)
	assert.Greater(t, sig.Confidence, 0)
	assert.LessOrEqual(t, sig.Confidence, 100)
	assert.Equal(t, last, sig.Entry)
	assert.NotEmpty(t, sig.Reasons())
}

func TestGenerate_FlatMarketVotesNone(t *testing.T) {
	candles := flatCandles(250, 1.1000)
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: 1.0999, Ask: 1.1001, Last: 1.1000}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)

	sig := NewGenerator(DefaultGeneratorConfig()).Generate(snap)

	assert.Equal(t, DirectionNone, sig.Direction)
	assert.Equal(t, 0, sig.Confidence)
	assert.Equal(t, 0, sig.Score, "every rule must abstain on dead-flat candles")
	for _, v := range sig.Votes {
		assert.Zero(t, v.Score, "rule %q voted on a flat market", v.Rule)
	}
}

func TestGenerate_PriceAtVWAPAbstains(t *testing.T) {
	candles := flatCandles(250, 1.1000)
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: 1.0999, Ask: 1.1001, Last: 1.1000}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)
	require.Equal(t, snap.Last, snap.Indicators.VWAP)

	sig := NewGenerator(DefaultGeneratorConfig()).Generate(snap)
	for _, v := range sig.Votes {
		if v.Rule == "vwap" {
			assert.Zero(t, v.Score, "price exactly at VWAP carries no bias")
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	candles := trendingCandles(250, 1.0000, 0.0005)
	last := candles[len(candles)-1].Close
	tick := Tick{Symbol: "EURUSD", Time: time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), Bid: last - 0.0001, Ask: last + 0.0001, Last: last}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)

	gen := NewGenerator(DefaultGeneratorConfig())
	a := gen.Generate(snap)
	b := gen.Generate(snap)

	assert.Equal(t, a, b, "identical snapshot and config must produce identical signals")
}

func TestGenerate_DowntrendVotesSell(t *testing.T) {
	candles := trendingCandles(250, 1.2000, -0.0005)
	last := candles[len(candles)-1].Close
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: last - 0.0001, Ask: last + 0.0001, Last: last}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)

	sig := NewGenerator(DefaultGeneratorConfig()).Generate(snap)

	assert.Equal(t, DirectionSell, sig.Direction)
}

func TestFingerprint_StableLength(t *testing.T) {
	candles := trendingCandles(250, 1.0000, 0.0005)
	last := candles[len(candles)-1].Close
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: last - 0.0001, Ask: last + 0.0001, Last: last}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)

	fp := snap.Fingerprint()
	assert.Len(t, fp, 6)
	assert.Equal(t, fp, snap.Fingerprint(), "fingerprint is deterministic")
}

func TestDirectionAgreement(t *testing.T) {
	assert.True(t, DirectionBuy.Agrees(ActionBuy))
	assert.True(t, DirectionSell.Agrees(ActionSell))
	assert.False(t, DirectionBuy.Agrees(ActionHold), "HOLD is a downgrade, not an agreement")
	assert.False(t, DirectionBuy.Agrees(ActionSell))
	assert.False(t, DirectionNone.Agrees(ActionBuy))

	assert.True(t, DirectionBuy.Inverts(ActionSell))
	assert.True(t, DirectionSell.Inverts(ActionBuy))
	assert.False(t, DirectionBuy.Inverts(ActionHold))
}

func TestRegimeDetectedOnSnapshot(t *testing.T) {
	candles := trendingCandles(250, 1.0000, 0.0005)
	last := candles[len(candles)-1].Close
	tick := Tick{Symbol: "EURUSD", Time: time.Now().UTC(), Bid: last - 0.0001, Ask: last + 0.0001, Last: last}

	snap, err := BuildSnapshot(tick, candles)
	require.NoError(t, err)

	assert.Contains(t, []regime.Regime{
		regime.TrendingStrong, regime.TrendingWeak, regime.Breakout, regime.Volatile, regime.Ranging,
	}, snap.Regime)
}
