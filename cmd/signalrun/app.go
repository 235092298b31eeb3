package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/application/pipeline"
	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/domain/safety"
	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/gateway"
	"github.com/sawpanic/signalrun/internal/gateway/paper"
	httpiface "github.com/sawpanic/signalrun/internal/interfaces/http"
	"github.com/sawpanic/signalrun/internal/interfaces/ws"
	"github.com/sawpanic/signalrun/internal/memory"
	"github.com/sawpanic/signalrun/internal/memory/redisstore"
	"github.com/sawpanic/signalrun/internal/metrics"
	paperexec "github.com/sawpanic/signalrun/internal/paper"
	"github.com/sawpanic/signalrun/internal/persistence"
	"github.com/sawpanic/signalrun/internal/persistence/postgres"
	"github.com/sawpanic/signalrun/internal/reasoner"
	"github.com/sawpanic/signalrun/internal/reasoner/ollama"
	"github.com/sawpanic/signalrun/internal/scheduler"
)

// startingBalance is the paper account's initial balance.
const startingBalance = 10000

// App is the assembled process: every long-running component plus the
// pipeline they share.
type App struct {
	cfg       *config.Config
	settings  *config.SettingsStore
	holder    *safety.Holder
	feed      *paper.Feed
	engine    *paperexec.Engine
	poller    *gateway.Poller
	pipe      *pipeline.Pipeline
	sched     *scheduler.Scheduler
	server    *httpiface.Server
	hub       *ws.Hub
	metrics   *metrics.Registry
	evaluator *reasoner.Evaluator
	retriever *memory.Retriever
}

// buildApp wires the process from configuration. Optional backends (redis,
// postgres) attach when configured and are skipped otherwise.
func buildApp(cfg *config.Config) (*App, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}

	settings, err := config.LoadSettings(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings profile: %w", err)
	}

	reg := metrics.NewRegistry()
	hub := ws.NewHub(reg)

	symbols := settings.Snapshot().Symbols
	feed := paper.NewFeed(symbols, cfg.Gateway.HistoryBars, cfg.Gateway.Seed)

	store := memory.NewAuto(cfg.Memory.MaxRecords, redisstore.NewFactory)
	engine := paperexec.NewEngine(startingBalance).WithStore(store)

	var journal persistence.DecisionsRepo
	if cfg.Journal.DSN != "" {
		db, err := postgres.Connect(cfg.Journal.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, decision journal disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				cancel()
				return nil, err
			}
			cancel()
			journal = postgres.NewDecisionsRepo(db, cfg.Journal.Timeout)
			engine.WithTradesRepo(postgres.NewTradesRepo(db, cfg.Journal.Timeout))
		}
	}

	holder := safety.NewHolder(safety.State{Limits: settings.Snapshot().Limits()})
	poller := gateway.NewPoller(feed, engine, holder, settings, cfg.Gateway.PollInterval)

	backend := ollama.New(cfg.Reasoner.URL, cfg.Reasoner.Model)
	evaluator := reasoner.NewEvaluator(backend)
	retriever := memory.NewRetriever(store)

	pipe := pipeline.New(pipeline.Deps{
		Gateway:   feed,
		Holder:    holder,
		Settings:  settings,
		Generator: signal.NewGenerator(generatorConfig(cfg)),
		Retriever: retriever,
		Evaluator: evaluator,
		Store:     store,
		Journal:   journal,
		Executor:  engine,
		Broadcast: hub,
		Metrics:   reg,
	})

	handlers := httpiface.NewHandlers(httpiface.HandlersDeps{
		Holder:    holder,
		Settings:  settings,
		Pipeline:  pipe,
		Positions: engine,
		Decisions: journal,
		Metrics:   reg,
		Hub:       hub,
		Version:   version,
	})
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, handlers)

	return &App{
		cfg:       cfg,
		settings:  settings,
		holder:    holder,
		feed:      feed,
		engine:    engine,
		poller:    poller,
		pipe:      pipe,
		sched:     scheduler.New(pipe, settings),
		server:    server,
		hub:       hub,
		metrics:   reg,
		evaluator: evaluator,
		retriever: retriever,
	}, nil
}

func generatorConfig(cfg *config.Config) signal.GeneratorConfig {
	return signal.GeneratorConfig{
		TrendWeight:     cfg.Generator.TrendWeight,
		VWAPWeight:      cfg.Generator.VWAPWeight,
		RSIWeight:       cfg.Generator.RSIWeight,
		MACDWeight:      cfg.Generator.MACDWeight,
		BollingerWeight: cfg.Generator.BollingerWeight,
		PatternWeight:   cfg.Generator.PatternWeight,
		MinScore:        cfg.Generator.MinScore,
		FullScore:       cfg.Generator.FullScore,
	}
}

// startWorkers launches the safety poller, synthetic feed, paper engine,
// scan scheduler and the breaker gauge refresher.
func (a *App) startWorkers(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.poller.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.feed.Run(ctx, time.Second)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.engine.Run(ctx, a.feed.Subscribe())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sched.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.metrics.BreakerState.WithLabelValues("reasoner").Set(a.evaluator.BreakerState())
				a.metrics.BreakerState.WithLabelValues("memory_store").Set(a.retriever.BreakerState())
			}
		}
	}()
}

// Run starts every component and blocks until the context is cancelled,
// then shuts the HTTP server down gracefully.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	a.startWorkers(ctx, &wg)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	log.Info().Str("addr", a.server.Address()).
		Strs("symbols", a.settings.Snapshot().Symbols).
		Msg("signalrun started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	a.hub.Close()
	wg.Wait()
	return nil
}

// RunLoop runs the scan loop, safety poller and paper engine without the
// HTTP API. Useful for headless deployments and smoke runs.
func (a *App) RunLoop(ctx context.Context) error {
	var wg sync.WaitGroup
	a.startWorkers(ctx, &wg)

	log.Info().Strs("symbols", a.settings.Snapshot().Symbols).
		Msg("signalrun loop started")

	<-ctx.Done()
	a.hub.Close()
	wg.Wait()
	return nil
}

// ScanOnce runs a single evaluation cycle for one symbol, polling the
// safety state first so the cycle sees live figures.
func (a *App) ScanOnce(ctx context.Context, symbol string) pipeline.Outcome {
	a.poller.PollOnce(ctx)
	return a.pipe.Evaluate(ctx, symbol)
}
