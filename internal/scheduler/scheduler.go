// Package scheduler drives the continuous scan loop: one evaluation per
// configured symbol per interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/application/pipeline"
	"github.com/sawpanic/signalrun/internal/config"
)

// Scheduler fans evaluation cycles out over the symbol universe. Symbols
// run concurrently within a sweep; the pipeline's coalescing keeps a slow
// sweep from stacking duplicate work for the same symbol.
type Scheduler struct {
	pipe     *pipeline.Pipeline
	settings *config.SettingsStore
}

// New creates a scheduler over the pipeline.
func New(pipe *pipeline.Pipeline, settings *config.SettingsStore) *Scheduler {
	return &Scheduler{pipe: pipe, settings: settings}
}

// Run sweeps until the context is cancelled. The interval and symbol list
// are re-read from the live settings on every tick, so profile updates take
// effect without a restart.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Msg("scan loop started")
	for {
		interval := time.Duration(s.settings.Snapshot().ScanIntervalSec) * time.Second
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("scan loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// Sweep evaluates every configured symbol once and waits for all cycles to
// finish.
func (s *Scheduler) Sweep(ctx context.Context) {
	symbols := s.settings.Snapshot().Symbols

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			out := s.pipe.Evaluate(ctx, sym)
			if out.Admitted() {
				log.Info().Str("symbol", sym).Str("setup_id", out.Setup.ID).Msg("sweep produced setup")
			}
		}(sym)
	}
	wg.Wait()
}
