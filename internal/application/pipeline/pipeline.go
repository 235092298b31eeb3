// Package pipeline orchestrates one evaluation cycle per symbol: snapshot,
// quant signal, playbook retrieval, reasoning verdict, risk plan, and the
// safety gate admission.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/domain/regime"
	"github.com/sawpanic/signalrun/internal/domain/risk"
	"github.com/sawpanic/signalrun/internal/domain/safety"
	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/gateway"
	"github.com/sawpanic/signalrun/internal/memory"
	"github.com/sawpanic/signalrun/internal/metrics"
	"github.com/sawpanic/signalrun/internal/persistence"
	"github.com/sawpanic/signalrun/internal/reasoner"
)

// ContextRetriever is the playbook retrieval boundary the pipeline calls.
type ContextRetriever interface {
	Retrieve(ctx context.Context, fingerprint []float64, k int) memory.RetrievedContext
}

// VerdictEvaluator is the reasoning boundary the pipeline calls.
type VerdictEvaluator interface {
	Evaluate(ctx context.Context, cfg reasoner.EvaluatorConfig, sig signal.QuantSignal, rc memory.RetrievedContext) signal.Verdict
}

// DecisionJournal is the narrow journaling interface the pipeline writes to.
type DecisionJournal interface {
	Insert(ctx context.Context, d persistence.Decision) error
}

// Executor receives admitted setups; in paper mode the simulated engine
// backs it.
type Executor interface {
	Open(setup signal.TradeSetup) error
}

// Broadcaster pushes cycle outcomes to connected dashboard clients.
type Broadcaster interface {
	Broadcast(event any)
}

// Outcome is the result of one evaluation cycle: exactly one of Setup or
// Rejection is set.
type Outcome struct {
	Symbol    string             `json:"symbol"`
	Setup     *signal.TradeSetup `json:"setup,omitempty"`
	Rejection *safety.Rejection  `json:"rejection,omitempty"`
	GateState safety.GateState   `json:"gate_state"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Admitted reports whether the cycle produced a setup.
func (o Outcome) Admitted() bool { return o.Setup != nil }

// flight is one in-progress evaluation; concurrent requests for the same
// symbol wait on it instead of starting their own.
type flight struct {
	done chan struct{}
	out  Outcome
}

// Pipeline runs evaluation cycles. Safe for concurrent use; per-symbol
// requests are coalesced so at most one evaluation per symbol is in flight.
type Pipeline struct {
	gw        gateway.MarketGateway
	holder    *safety.Holder
	settings  *config.SettingsStore
	gen       *signal.Generator
	retriever ContextRetriever
	evaluator VerdictEvaluator
	store     memory.Store
	journal   DecisionJournal
	executor  Executor
	broadcast Broadcaster
	metrics   *metrics.Registry

	mu        sync.Mutex
	flights   map[string]*flight
	seq       map[string]uint64
	finalSeq  map[string]uint64
	cooldowns map[string]time.Time

	now func() time.Time
}

// Deps bundles the pipeline's collaborators. Journal, Executor and
// Broadcaster may be nil; the pipeline skips them.
type Deps struct {
	Gateway   gateway.MarketGateway
	Holder    *safety.Holder
	Settings  *config.SettingsStore
	Generator *signal.Generator
	Retriever ContextRetriever
	Evaluator VerdictEvaluator
	Store     memory.Store
	Journal   DecisionJournal
	Executor  Executor
	Broadcast Broadcaster
	Metrics   *metrics.Registry
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	m := d.Metrics
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Pipeline{
		gw:        d.Gateway,
		holder:    d.Holder,
		settings:  d.Settings,
		gen:       d.Generator,
		retriever: d.Retriever,
		evaluator: d.Evaluator,
		store:     d.Store,
		journal:   d.Journal,
		executor:  d.Executor,
		broadcast: d.Broadcast,
		metrics:   m,
		flights:   make(map[string]*flight),
		seq:       make(map[string]uint64),
		finalSeq:  make(map[string]uint64),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Evaluate runs one cycle for the symbol, or joins the cycle already in
// flight for it. Every call returns a complete Outcome; rejection is the
// normal negative result, never an error.
func (p *Pipeline) Evaluate(ctx context.Context, symbol string) Outcome {
	p.mu.Lock()
	if f, ok := p.flights[symbol]; ok {
		p.mu.Unlock()
		p.metrics.Cycles.WithLabelValues("coalesced").Inc()
		select {
		case <-f.done:
			return f.out
		case <-ctx.Done():
			return Outcome{
				Symbol:    symbol,
				Rejection: safety.Reject(symbol, safety.ReasonSuperseded, "caller cancelled while coalesced"),
			}
		}
	}
	f := &flight{done: make(chan struct{})}
	p.flights[symbol] = f
	p.seq[symbol]++
	seq := p.seq[symbol]
	p.mu.Unlock()

	f.out = p.evaluateOnce(ctx, symbol, seq)

	p.mu.Lock()
	delete(p.flights, symbol)
	p.mu.Unlock()
	close(f.done)

	p.finalize(ctx, f.out)
	return f.out
}

// evaluateOnce runs the cycle body. seq orders results per symbol so a
// stale evaluation can never overwrite a newer one.
func (p *Pipeline) evaluateOnce(ctx context.Context, symbol string, seq uint64) Outcome {
	started := p.now()
	st := p.holder.Current()
	settings := p.settings.Snapshot()

	out := Outcome{Symbol: symbol, GateState: safety.Blocked}
	reject := func(reason safety.Reason, format string, args ...any) Outcome {
		out.Rejection = safety.Reject(symbol, reason, format, args...)
		out.Elapsed = p.now().Sub(started)
		return out
	}

	// Blocked states reject before any external dependency is consulted:
	// no store query, no reasoner call.
	if !st.Connected {
		return reject(safety.ReasonGatewayDown, "gateway connection unhealthy")
	}
	if !st.HasAccount {
		return reject(safety.ReasonNoAccountData, "no valid account data")
	}
	if st.DrawdownPct >= st.Limits.MaxDrawdown {
		return reject(safety.ReasonMaxDrawdown, "drawdown %.2f%% at or above limit %.2f%%", st.DrawdownPct, st.Limits.MaxDrawdown)
	}

	if until, active := p.cooldownActive(symbol, time.Duration(settings.CooldownSec)*time.Second); active {
		return reject(safety.ReasonCooldown, "symbol in cooldown until %s", until.Format(time.RFC3339))
	}

	snapTimer := p.metrics.Step("snapshot")
	snap, err := p.gw.GetSnapshot(ctx, symbol)
	if err != nil {
		snapTimer.Done("error")
		return reject(safety.ReasonGatewayDown, "snapshot failed: %v", err)
	}
	snapTimer.Done("ok")

	// A spread wider than a third of the volatility unit makes the planned
	// levels meaningless.
	if snap.Indicators.ATR > 0 && snap.Spread() > snap.Indicators.ATR*0.3 {
		return reject(safety.ReasonWideSpread, "spread %.6f exceeds 30%% of ATR %.6f", snap.Spread(), snap.Indicators.ATR)
	}

	sigTimer := p.metrics.Step("signal")
	quant := p.gen.Generate(snap)
	sigTimer.Done("ok")
	if quant.Direction == signal.DirectionNone {
		return reject(safety.ReasonNoSignal, "quant ensemble voted no direction (score %d)", quant.Score)
	}

	fp := snap.Fingerprint()
	retTimer := p.metrics.Step("retrieval")
	rc := p.retriever.Retrieve(ctx, fp, settings.RetrievalK)
	if rc.Degraded {
		retTimer.Done("degraded")
		p.metrics.DegradedContexts.Inc()
		p.metrics.ProviderCalls.WithLabelValues("memory_store", "error").Inc()
	} else {
		retTimer.Done("ok")
		p.metrics.ProviderCalls.WithLabelValues("memory_store", "ok").Inc()
	}

	evalTimer := p.metrics.Step("reasoning")
	verdict := p.evaluator.Evaluate(ctx, reasoner.EvaluatorConfig{
		Timeout:         time.Duration(settings.ReasonerTimeoutMS) * time.Millisecond,
		DegradedCeiling: st.Limits.DegradedConfidenceCeiling,
	}, quant, rc)
	if verdict.Valid {
		evalTimer.Done("ok")
		p.metrics.ProviderCalls.WithLabelValues("reasoner", "ok").Inc()
	} else {
		evalTimer.Done("error")
		p.metrics.ProviderCalls.WithLabelValues("reasoner", "error").Inc()
	}

	flags := safety.Flags{RetrievalDegraded: rc.Degraded, VerdictValid: verdict.Valid}
	out.GateState = safety.Resolve(st, flags)

	plan, planErr := p.buildPlan(snap, quant, st)
	if planErr != nil {
		return reject(safety.ReasonRiskComputation, "risk plan failed: %v", planErr)
	}

	gateTimer := p.metrics.Step("gate")
	setup, rejection := safety.Admit(safety.AdmitInput{
		State:   st,
		Signal:  quant,
		Verdict: verdict,
		Plan:    plan,
	})
	if rejection != nil {
		gateTimer.Done("rejected")
		out.Rejection = rejection
		out.Elapsed = p.now().Sub(started)
		return out
	}
	gateTimer.Done("ok")

	setup.Fingerprint = fp

	// Stale results never land: only the newest evaluation per symbol may
	// publish a setup.
	p.mu.Lock()
	if seq < p.finalSeq[symbol] {
		p.mu.Unlock()
		return reject(safety.ReasonSuperseded, "evaluation overtaken by a newer cycle")
	}
	p.finalSeq[symbol] = seq
	p.cooldowns[symbol] = p.now()
	p.mu.Unlock()

	out.Setup = setup
	out.Elapsed = p.now().Sub(started)
	return out
}

// buildPlan computes the numeric risk plan for the candidate.
func (p *Pipeline) buildPlan(snap signal.MarketSnapshot, quant signal.QuantSignal, st safety.State) (safety.Plan, error) {
	stopMult := regime.StopMultiplier(snap.Regime)
	levels, err := risk.ComputeLevels(quant.Entry, quant.Direction, snap.Indicators.ATR, stopMult, st.Limits.TargetRiskReward)
	if err != nil {
		return safety.Plan{}, err
	}
	size, err := risk.SizePosition(st.Equity, st.Limits.RiskPerTrade, levels.StopDistance, risk.DefaultInstrument)
	if err != nil {
		return safety.Plan{}, err
	}
	rr, err := risk.RiskReward(quant.Entry, levels.StopLoss, levels.TakeProfit)
	if err != nil {
		return safety.Plan{}, err
	}
	return safety.Plan{
		Entry:       quant.Entry,
		StopLoss:    levels.StopLoss,
		TakeProfit:  levels.TakeProfit,
		TakeProfits: levels.TakeProfits,
		Size:        size,
		RiskReward:  rr,
	}, nil
}

// cooldownActive reports whether a setup for the symbol was produced within
// the cooldown window.
func (p *Pipeline) cooldownActive(symbol string, window time.Duration) (time.Time, bool) {
	if window <= 0 {
		return time.Time{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.cooldowns[symbol]
	if !ok {
		return time.Time{}, false
	}
	until := last.Add(window)
	if p.now().Before(until) {
		return until, true
	}
	return time.Time{}, false
}

// finalize handles the side effects of a completed cycle: metrics, journal,
// execution, playbook record, broadcast. All best effort.
func (p *Pipeline) finalize(ctx context.Context, out Outcome) {
	if out.Admitted() {
		p.metrics.Cycles.WithLabelValues("setup").Inc()
		log.Info().Str("symbol", out.Symbol).Str("direction", string(out.Setup.Direction)).
			Float64("entry", out.Setup.Entry).Float64("size", out.Setup.Size).
			Int("confidence", out.Setup.Confidence).Dur("elapsed", out.Elapsed).
			Msg("trade setup admitted")

		if p.executor != nil {
			if err := p.executor.Open(*out.Setup); err != nil {
				log.Error().Err(err).Str("setup_id", out.Setup.ID).Msg("executor rejected setup")
			}
		}
		p.recordPlaybook(*out.Setup)
	} else {
		p.metrics.Cycles.WithLabelValues("rejected").Inc()
		p.metrics.Rejections.WithLabelValues(string(out.Rejection.Reason)).Inc()
		log.Debug().Str("symbol", out.Symbol).Str("reason", string(out.Rejection.Reason)).
			Str("detail", out.Rejection.Detail).Msg("cycle rejected")
	}

	p.journalOutcome(ctx, out)

	if p.broadcast != nil {
		p.broadcast.Broadcast(out)
	}
}

// recordPlaybook appends the open scenario to the playbook store, retrying
// once. The evaluation path never waits on this write.
func (p *Pipeline) recordPlaybook(setup signal.TradeSetup) {
	if p.store == nil {
		return
	}
	rec := memory.Record{
		ID:          setup.ID,
		Symbol:      setup.Symbol,
		Fingerprint: setup.Fingerprint,
		Action:      string(setup.Direction),
		Outcome:     memory.Outcome{Label: "open"},
		CreatedAt:   setup.CreatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := p.store.Record(ctx, rec)
		if err != nil {
			err = p.store.Record(ctx, rec)
		}
		if err != nil {
			log.Warn().Err(err).Str("setup_id", setup.ID).Msg("playbook record failed after retry")
		}
	}()
}

// journalOutcome writes the decision row; failures are logged, never fatal.
func (p *Pipeline) journalOutcome(ctx context.Context, out Outcome) {
	if p.journal == nil {
		return
	}
	d := persistence.Decision{
		Timestamp: p.now().UTC(),
		Symbol:    out.Symbol,
	}
	if out.Admitted() {
		s := out.Setup
		dir := string(s.Direction)
		d.Outcome = "setup"
		d.SetupID = &s.ID
		d.Direction = &dir
		d.Confidence = &s.Confidence
		d.RiskReward = &s.RiskReward
		d.Attributes = map[string]interface{}{
			"entry":       s.Entry,
			"stop_loss":   s.StopLoss,
			"take_profit": s.TakeProfit,
			"size":        s.Size,
			"reasoning":   s.Reasoning,
		}
	} else {
		reason := string(out.Rejection.Reason)
		d.Outcome = "rejected"
		d.Reason = &reason
		d.Attributes = map[string]interface{}{"detail": out.Rejection.Detail}
	}
	if err := p.journal.Insert(ctx, d); err != nil {
		log.Warn().Err(err).Str("symbol", out.Symbol).Msg("decision journal write failed")
	}
}
