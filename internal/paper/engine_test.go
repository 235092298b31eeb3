package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/memory"
)

func buySetup(id string) signal.TradeSetup {
	return signal.TradeSetup{
		ID:          id,
		Symbol:      "EURUSD",
		Direction:   signal.DirectionBuy,
		Entry:       1.1000,
		StopLoss:    1.0985,
		TakeProfit:  1.1030,
		Size:        66666.66,
		Fingerprint: []float64{0.1, 0.5, 0.2, 0.6, 0.3, 1.0},
		CreatedAt:   time.Now().UTC(),
	}
}

func tick(symbol string, price float64) signal.Tick {
	return signal.Tick{Symbol: symbol, Time: time.Now().UTC(), Bid: price, Ask: price, Last: price}
}

func TestOpenRejectsDuplicateSetup(t *testing.T) {
	e := NewEngine(10000)
	require.NoError(t, e.Open(buySetup("s1")))
	require.Error(t, e.Open(buySetup("s1")))
	assert.Len(t, e.Positions(), 1)
}

func TestTakeProfitClosesWin(t *testing.T) {
	e := NewEngine(10000)
	require.NoError(t, e.Open(buySetup("s1")))

	e.OnTick(tick("EURUSD", 1.1010)) // between levels, stays open
	assert.Len(t, e.Positions(), 1)

	e.OnTick(tick("EURUSD", 1.1035))
	require.Empty(t, e.Positions())

	closed := e.Closed()
	require.Len(t, closed, 1)
	assert.True(t, closed[0].Win)
	assert.Equal(t, 1.1030, closed[0].ExitPrice)
	// (1.1030 - 1.1000) * 66666.66 = 200.00
	assert.InDelta(t, 200.0, closed[0].PnL, 0.01)

	acct, err := e.Account(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10200.0, acct.Balance, 0.01)
}

func TestStopLossClosesLoss(t *testing.T) {
	e := NewEngine(10000)
	require.NoError(t, e.Open(buySetup("s1")))

	e.OnTick(tick("EURUSD", 1.0980))
	closed := e.Closed()
	require.Len(t, closed, 1)
	assert.False(t, closed[0].Win)
	assert.Equal(t, 1.0985, closed[0].ExitPrice)
	assert.InDelta(t, -100.0, closed[0].PnL, 0.01)
}

func TestSellDirectionLevels(t *testing.T) {
	e := NewEngine(10000)
	setup := buySetup("s1")
	setup.Direction = signal.DirectionSell
	setup.StopLoss = 1.1015
	setup.TakeProfit = 1.0970
	require.NoError(t, e.Open(setup))

	e.OnTick(tick("EURUSD", 1.0960))
	closed := e.Closed()
	require.Len(t, closed, 1)
	assert.True(t, closed[0].Win)
	assert.InDelta(t, 200.0, closed[0].PnL, 0.01)
}

func TestEquityIncludesUnrealizedPnL(t *testing.T) {
	e := NewEngine(10000)
	require.NoError(t, e.Open(buySetup("s1")))

	e.OnTick(tick("EURUSD", 1.1010))

	acct, err := e.Account(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, acct.Balance, 0.01)
	// (1.1010 - 1.1000) * 66666.66 = 66.67 unrealized (rounded)
	assert.InDelta(t, 10066.67, acct.Equity, 0.01)
	assert.True(t, acct.Valid)
}

func TestPositionsOrderedNewestFirst(t *testing.T) {
	e := NewEngine(10000)

	first := buySetup("s1")
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	second := buySetup("s2")
	second.Symbol = "GBPUSD"
	third := buySetup("s3")
	third.Symbol = "USDJPY"
	third.CreatedAt = time.Now().UTC().Add(time.Minute)

	require.NoError(t, e.Open(first))
	require.NoError(t, e.Open(second))
	require.NoError(t, e.Open(third))

	positions := e.Positions()
	require.Len(t, positions, 3)
	assert.Equal(t, "s3", positions[0].SetupID)
	assert.Equal(t, "s1", positions[2].SetupID)
}

func TestTicksForOtherSymbolsIgnored(t *testing.T) {
	e := NewEngine(10000)
	require.NoError(t, e.Open(buySetup("s1")))

	e.OnTick(tick("GBPUSD", 0.5))
	assert.Len(t, e.Positions(), 1)
}

func TestCloseLabelsPlaybookOutcome(t *testing.T) {
	store := memory.NewMemStore(16)
	e := NewEngine(10000).WithStore(store)
	require.NoError(t, e.Open(buySetup("s1")))

	e.OnTick(tick("EURUSD", 1.1035))

	recs, err := store.Query(context.Background(), []float64{0.1, 0.5, 0.2, 0.6, 0.3, 1.0}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "win", recs[0].Outcome.Label)
	assert.True(t, recs[0].Outcome.Success)
	assert.InDelta(t, 200.0, recs[0].Outcome.PnL, 0.01)
}
