// Package paper is the synthetic market gateway used for development and
// paper trading: a seeded random walk per symbol with a controllable
// connection state.
package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/gateway"
)

// series is one symbol's evolving price history.
type series struct {
	price   float64
	spread  float64
	candles []signal.Candle
	rng     *rand.Rand
}

// Feed implements gateway.MarketGateway over generated data. Deterministic
// for a fixed seed and advance sequence, which the pipeline tests rely on.
type Feed struct {
	mu          sync.Mutex
	symbols     map[string]*series
	historyBars int
	connected   bool
	heartbeat   time.Time
	subs        []chan signal.Tick
}

// startPrices seeds plausible levels per instrument class.
var startPrices = map[string]float64{
	"EURUSD": 1.1000,
	"GBPUSD": 1.2700,
	"USDJPY": 148.50,
	"XAUUSD": 2350.0,
}

// NewFeed creates a feed for the given symbols with historyBars of seeded
// history each.
func NewFeed(symbols []string, historyBars int, seed int64) *Feed {
	if historyBars < signal.MinHistoryBars {
		historyBars = 250
	}
	f := &Feed{
		symbols:     make(map[string]*series, len(symbols)),
		historyBars: historyBars,
		connected:   true,
		heartbeat:   time.Now().UTC(),
	}
	for i, sym := range symbols {
		start, ok := startPrices[sym]
		if !ok {
			start = 100.0
		}
		s := &series{
			price:  start,
			spread: start * 0.0001,
			rng:    rand.New(rand.NewSource(seed + int64(i))),
		}
		f.seedHistory(s, sym)
		f.symbols[sym] = s
	}
	return f
}

// seedHistory walks the series back-filled over historyBars minutes.
func (f *Feed) seedHistory(s *series, symbol string) {
	t0 := time.Now().UTC().Add(-time.Duration(f.historyBars) * time.Minute)
	s.candles = make([]signal.Candle, 0, f.historyBars)
	for i := 0; i < f.historyBars; i++ {
		open := s.price
		s.price = nextPrice(s.rng, s.price)
		high := math.Max(open, s.price) * (1 + s.rng.Float64()*0.0002)
		low := math.Min(open, s.price) * (1 - s.rng.Float64()*0.0002)
		s.candles = append(s.candles, signal.Candle{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  s.price,
			Volume: 50 + s.rng.Float64()*100,
		})
	}
}

// nextPrice applies one mildly trending random-walk step.
func nextPrice(rng *rand.Rand, price float64) float64 {
	drift := 0.00002
	vol := 0.0004
	return price * (1 + drift + (rng.Float64()*2-1)*vol)
}

// GetSnapshot builds the per-cycle market view for one symbol.
func (f *Feed) GetSnapshot(ctx context.Context, symbol string) (signal.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return signal.MarketSnapshot{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return signal.MarketSnapshot{}, fmt.Errorf("gateway disconnected")
	}
	s, ok := f.symbols[symbol]
	if !ok {
		return signal.MarketSnapshot{}, fmt.Errorf("unknown symbol %q", symbol)
	}

	candles := make([]signal.Candle, len(s.candles))
	copy(candles, s.candles)
	tick := signal.Tick{
		Symbol: symbol,
		Time:   time.Now().UTC(),
		Bid:    s.price - s.spread/2,
		Ask:    s.price + s.spread/2,
		Last:   s.price,
	}
	return signal.BuildSnapshot(tick, candles)
}

// Health reports the controllable connection state.
func (f *Feed) Health() gateway.Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gateway.Health{Connected: f.connected, LastHeartbeat: f.heartbeat}
}

// SetConnected flips the simulated connection, for demos and tests.
func (f *Feed) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
	if connected {
		f.heartbeat = time.Now().UTC()
	}
}

// Subscribe returns a channel of subsequent ticks. Slow subscribers drop
// ticks rather than block the feed.
func (f *Feed) Subscribe() <-chan signal.Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan signal.Tick, 64)
	f.subs = append(f.subs, ch)
	return ch
}

// Run advances all symbols one step per interval, emitting ticks, until
// the context is cancelled.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("paper feed stopped")
			return
		case now := <-ticker.C:
			f.advance(now.UTC())
		}
	}
}

// Advance steps every symbol once, used directly by tests and the paper
// engine's clock.
func (f *Feed) Advance() { f.advance(time.Now().UTC()) }

func (f *Feed) advance(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return
	}
	f.heartbeat = now

	for sym, s := range f.symbols {
		open := s.price
		s.price = nextPrice(s.rng, s.price)
		high := math.Max(open, s.price)
		low := math.Min(open, s.price)
		s.candles = append(s.candles, signal.Candle{
			Time: now, Open: open, High: high, Low: low, Close: s.price,
			Volume: 50 + s.rng.Float64()*100,
		})
		if len(s.candles) > f.historyBars {
			s.candles = s.candles[len(s.candles)-f.historyBars:]
		}

		tick := signal.Tick{
			Symbol: sym,
			Time:   now,
			Bid:    s.price - s.spread/2,
			Ask:    s.price + s.spread/2,
			Last:   s.price,
		}
		for _, ch := range f.subs {
			select {
			case ch <- tick:
			default: // drop for slow consumers
			}
		}
	}
}
