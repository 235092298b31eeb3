package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/application/pipeline"
	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/domain/safety"
	"github.com/sawpanic/signalrun/internal/persistence"
)

type countingJournal struct {
	mu   sync.Mutex
	rows []persistence.Decision
}

func (j *countingJournal) Insert(ctx context.Context, d persistence.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rows = append(j.rows, d)
	return nil
}

func (j *countingJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.rows)
}

func newTestScheduler(symbols []string) (*Scheduler, *countingJournal) {
	settings := config.DefaultSettings()
	settings.Symbols = symbols
	settings.ScanIntervalSec = 1
	store := config.NewSettingsStore(settings)

	journal := &countingJournal{}
	// A disconnected holder makes every cycle a fast GatewayDown rejection,
	// which is all the scheduler cares about.
	pipe := pipeline.New(pipeline.Deps{
		Holder:   safety.NewHolder(safety.State{}),
		Settings: store,
		Journal:  journal,
	})
	return New(pipe, store), journal
}

func TestSweepEvaluatesEverySymbol(t *testing.T) {
	sched, journal := newTestScheduler([]string{"EURUSD", "GBPUSD", "USDJPY"})

	sched.Sweep(context.Background())

	require.Equal(t, 3, journal.count())
	seen := map[string]bool{}
	for _, row := range journal.rows {
		seen[row.Symbol] = true
		assert.Equal(t, "rejected", row.Outcome)
	}
	assert.Len(t, seen, 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	sched, journal := newTestScheduler([]string{"EURUSD"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return journal.count() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
