// Package breakers wraps sony/gobreaker with the house trip policy: three
// consecutive failures, or more than 5% failures once at least twenty
// requests have been seen.
package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker guards one external dependency (reasoner, memory store). An open
// breaker makes the dependency look unavailable, which the pipeline already
// degrades around.
type Breaker struct {
	name string
	cb   *cb.CircuitBreaker
}

// New creates a breaker for the named dependency.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{name: name, cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Open reports whether the breaker currently refuses calls.
func (b *Breaker) Open() bool { return b.cb.State() == cb.StateOpen }

// StateValue maps the breaker state onto a gauge value: 0 closed, 1 half
// open, 2 open.
func (b *Breaker) StateValue() float64 {
	switch b.cb.State() {
	case cb.StateClosed:
		return 0
	case cb.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
