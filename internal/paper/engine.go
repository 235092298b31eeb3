// Package paper simulates execution: admitted setups become open positions
// monitored against their stop and target, with a decimal ledger backing
// the account figures the safety poller reads.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/gateway"
	"github.com/sawpanic/signalrun/internal/memory"
	"github.com/sawpanic/signalrun/internal/persistence"
)

// Position is one open simulated trade.
type Position struct {
	SetupID     string           `json:"setup_id"`
	Symbol      string           `json:"symbol"`
	Direction   signal.Direction `json:"direction"`
	Entry       float64          `json:"entry"`
	StopLoss    float64          `json:"stop_loss"`
	TakeProfit  float64          `json:"take_profit"`
	Size        float64          `json:"size"`
	Fingerprint []float64        `json:"-"`
	OpenedAt    time.Time        `json:"opened_at"`
}

// ClosedTrade is the realized result of a position.
type ClosedTrade struct {
	Position
	ExitPrice float64   `json:"exit_price"`
	PnL       float64   `json:"pnl"`
	Win       bool      `json:"win"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Engine is the paper execution engine. Money is tracked in decimals; the
// float boundary exists only at the gateway.AccountSource projection.
type Engine struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]*Position // by setup ID
	lastPrice map[string]float64
	closed    []ClosedTrade

	store  memory.Store           // playbook outcome labeling, may be nil
	trades persistence.TradesRepo // trade journal, may be nil
}

// NewEngine creates an engine with the given starting balance.
func NewEngine(startingBalance float64) *Engine {
	return &Engine{
		balance:   decimal.NewFromFloat(startingBalance),
		positions: make(map[string]*Position),
		lastPrice: make(map[string]float64),
	}
}

// WithStore wires the playbook store for outcome labeling on close.
func (e *Engine) WithStore(store memory.Store) *Engine {
	e.store = store
	return e
}

// WithTradesRepo wires the trade journal.
func (e *Engine) WithTradesRepo(repo persistence.TradesRepo) *Engine {
	e.trades = repo
	return e
}

// Open turns an admitted setup into an open position. One position per
// setup; a duplicate setup ID is an error.
func (e *Engine) Open(setup signal.TradeSetup) error {
	e.mu.Lock()
	if _, exists := e.positions[setup.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("position for setup %s already open", setup.ID)
	}
	pos := &Position{
		SetupID:     setup.ID,
		Symbol:      setup.Symbol,
		Direction:   setup.Direction,
		Entry:       setup.Entry,
		StopLoss:    setup.StopLoss,
		TakeProfit:  setup.TakeProfit,
		Size:        setup.Size,
		Fingerprint: setup.Fingerprint,
		OpenedAt:    setup.CreatedAt,
	}
	e.positions[setup.ID] = pos
	e.mu.Unlock()

	log.Info().Str("setup_id", setup.ID).Str("symbol", setup.Symbol).
		Str("direction", string(setup.Direction)).Float64("size", setup.Size).
		Msg("paper position opened")

	if e.trades != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rec := &persistence.PaperTrade{
			SetupID:    setup.ID,
			Symbol:     setup.Symbol,
			Direction:  string(setup.Direction),
			Entry:      setup.Entry,
			StopLoss:   setup.StopLoss,
			TakeProfit: setup.TakeProfit,
			Size:       setup.Size,
			OpenedAt:   setup.CreatedAt,
		}
		if err := e.trades.Insert(ctx, rec); err != nil {
			log.Warn().Err(err).Str("setup_id", setup.ID).Msg("trade journal insert failed")
		}
	}
	return nil
}

// OnTick updates the mark price for the symbol and closes any position
// whose stop or target the price crossed. The stop is checked first: when
// one tick spans both levels the conservative outcome wins.
func (e *Engine) OnTick(tick signal.Tick) {
	e.mu.Lock()
	e.lastPrice[tick.Symbol] = tick.Last
	var toClose []ClosedTrade
	for id, pos := range e.positions {
		if pos.Symbol != tick.Symbol {
			continue
		}
		exit, hit, win := checkLevels(pos, tick.Last)
		if !hit {
			continue
		}
		ct := ClosedTrade{
			Position:  *pos,
			ExitPrice: exit,
			PnL:       realizedPnL(pos, exit),
			Win:       win,
			ClosedAt:  tick.Time,
		}
		e.balance = e.balance.Add(decimal.NewFromFloat(ct.PnL))
		e.closed = append(e.closed, ct)
		delete(e.positions, id)
		toClose = append(toClose, ct)
	}
	e.mu.Unlock()

	for _, ct := range toClose {
		e.settle(ct)
	}
}

// checkLevels reports whether the price crossed the stop or target.
func checkLevels(pos *Position, price float64) (exit float64, hit, win bool) {
	switch pos.Direction {
	case signal.DirectionBuy:
		if price <= pos.StopLoss {
			return pos.StopLoss, true, false
		}
		if price >= pos.TakeProfit {
			return pos.TakeProfit, true, true
		}
	case signal.DirectionSell:
		if price >= pos.StopLoss {
			return pos.StopLoss, true, false
		}
		if price <= pos.TakeProfit {
			return pos.TakeProfit, true, true
		}
	}
	return 0, false, false
}

// realizedPnL computes the signed PnL of a position at the exit price.
func realizedPnL(pos *Position, exit float64) float64 {
	entry := decimal.NewFromFloat(pos.Entry)
	px := decimal.NewFromFloat(exit)
	size := decimal.NewFromFloat(pos.Size)

	diff := px.Sub(entry)
	if pos.Direction == signal.DirectionSell {
		diff = entry.Sub(px)
	}
	pnl, _ := diff.Mul(size).Round(2).Float64()
	return pnl
}

// settle reports a closed trade to the journal and labels the playbook
// scenario with its realized outcome.
func (e *Engine) settle(ct ClosedTrade) {
	result := "loss"
	if ct.Win {
		result = "win"
	}
	log.Info().Str("setup_id", ct.SetupID).Str("symbol", ct.Symbol).
		Float64("pnl", ct.PnL).Str("result", result).Msg("paper position closed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if e.trades != nil {
		if err := e.trades.Close(ctx, ct.SetupID, ct.ExitPrice, ct.PnL, result, ct.ClosedAt); err != nil {
			log.Warn().Err(err).Str("setup_id", ct.SetupID).Msg("trade journal close failed")
		}
	}
	if e.store != nil {
		rec := memory.Record{
			ID:          ct.SetupID + ":closed",
			Symbol:      ct.Symbol,
			Fingerprint: ct.Fingerprint,
			Action:      string(ct.Direction),
			Outcome:     memory.Outcome{Label: result, PnL: ct.PnL, Success: ct.Win},
			CreatedAt:   ct.ClosedAt,
		}
		if err := e.store.Record(ctx, rec); err != nil {
			log.Warn().Err(err).Str("setup_id", ct.SetupID).Msg("playbook outcome record failed")
		}
	}
}

// Run consumes ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context, ticks <-chan signal.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			e.OnTick(tick)
		}
	}
}

// Account projects the ledger into the poller's account view: balance plus
// the unrealized PnL of open positions at the last mark.
func (e *Engine) Account(ctx context.Context) (gateway.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := e.balance
	for _, pos := range e.positions {
		mark, ok := e.lastPrice[pos.Symbol]
		if !ok {
			continue
		}
		equity = equity.Add(decimal.NewFromFloat(unrealizedPnL(pos, mark)))
	}

	balance, _ := e.balance.Round(2).Float64()
	eq, _ := equity.Round(2).Float64()
	return gateway.Account{Balance: balance, Equity: eq, Valid: true}, nil
}

func unrealizedPnL(pos *Position, mark float64) float64 {
	diff := mark - pos.Entry
	if pos.Direction == signal.DirectionSell {
		diff = pos.Entry - mark
	}
	return diff * pos.Size
}

// Positions returns the open positions, newest first by open time.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out
}

// Closed returns the realized trades in close order.
func (e *Engine) Closed() []ClosedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ClosedTrade(nil), e.closed...)
}
