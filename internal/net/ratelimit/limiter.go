// Package ratelimit provides per-dependency token bucket rate limiting for
// the outbound call boundaries (gateway polling, reasoner inference).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keys independent token buckets by dependency name so one noisy
// caller cannot starve another dependency's budget.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a limiter handing out rps tokens per second with the
// given burst capacity per dependency.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) get(name string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[name]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[name]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[name] = lim
	return lim
}

// Allow reports whether a call to the named dependency may proceed now.
func (l *Limiter) Allow(name string) bool {
	return l.get(name).Allow()
}

// Wait blocks until a call to the named dependency is allowed or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context, name string) error {
	return l.get(name).Wait(ctx)
}

// SetRPS retunes all buckets at runtime.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rps
	for _, lim := range l.limiters {
		lim.SetLimit(rate.Limit(rps))
	}
}
