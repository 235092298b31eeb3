package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain/signal"
)

func TestSnapshotHasCompleteIndicators(t *testing.T) {
	feed := NewFeed([]string{"EURUSD"}, 250, 42)

	snap, err := feed.GetSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)

	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.Greater(t, snap.Last, 0.0)
	assert.Greater(t, snap.Ask, snap.Bid)
	assert.True(t, snap.Indicators.Complete)
	assert.Greater(t, snap.Indicators.ATR, 0.0)
	assert.Greater(t, snap.Indicators.EMA200, 0.0)
	assert.NotEmpty(t, snap.Regime)
	assert.Len(t, snap.Fingerprint(), 6)
}

func TestDeterministicForSeed(t *testing.T) {
	a := NewFeed([]string{"EURUSD"}, 250, 7)
	b := NewFeed([]string{"EURUSD"}, 250, 7)

	for i := 0; i < 10; i++ {
		a.Advance()
		b.Advance()
	}

	sa, err := a.GetSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
	sb, err := b.GetSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, sa.Last, sb.Last)
	assert.Equal(t, sa.Indicators.ATR, sb.Indicators.ATR)
}

func TestUnknownSymbolErrors(t *testing.T) {
	feed := NewFeed([]string{"EURUSD"}, 250, 1)
	_, err := feed.GetSnapshot(context.Background(), "BTCUSD")
	require.Error(t, err)
}

func TestDisconnectedFeed(t *testing.T) {
	feed := NewFeed([]string{"EURUSD"}, 250, 1)
	feed.SetConnected(false)

	assert.False(t, feed.Health().Connected)
	_, err := feed.GetSnapshot(context.Background(), "EURUSD")
	require.Error(t, err)

	feed.SetConnected(true)
	_, err = feed.GetSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
}

func TestSubscribeReceivesTicks(t *testing.T) {
	feed := NewFeed([]string{"EURUSD", "GBPUSD"}, 250, 1)
	ticks := feed.Subscribe()

	feed.Advance()

	got := map[string]signal.Tick{}
	for i := 0; i < 2; i++ {
		select {
		case tk := <-ticks:
			got[tk.Symbol] = tk
		default:
			t.Fatalf("expected 2 ticks, got %d", len(got))
		}
	}
	require.Contains(t, got, "EURUSD")
	require.Contains(t, got, "GBPUSD")
	assert.Greater(t, got["EURUSD"].Ask, got["EURUSD"].Bid)
}

func TestHistoryWindowStaysBounded(t *testing.T) {
	feed := NewFeed([]string{"EURUSD"}, 250, 1)
	for i := 0; i < 300; i++ {
		feed.Advance()
	}

	snap, err := feed.GetSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Len(t, snap.Candles, 250)
}
