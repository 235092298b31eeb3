// Package memory is the playbook subsystem: append-only historical
// scenarios keyed by a numeric market fingerprint, retrieved by similarity
// to ground the reasoning step.
package memory

import (
	"context"
	"math"
	"time"
)

// Outcome is the realized result of a completed scenario. Records carry an
// open outcome until the position closes and the write path labels them.
type Outcome struct {
	Label   string  `json:"label"` // "open", "win", "loss"
	PnL     float64 `json:"pnl"`
	Success bool    `json:"success"`
}

// Record is one historical market scenario: the fingerprint at decision
// time, the action taken and the realized outcome. Append-only; the
// evaluation path only reads.
type Record struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Fingerprint []float64 `json:"fingerprint"`
	Action      string    `json:"action"`
	Outcome     Outcome   `json:"outcome"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the external playbook store boundary. Query errors are expected
// operational conditions (timeout, unreachable) that the retriever degrades
// around; Record is best effort.
type Store interface {
	Query(ctx context.Context, fingerprint []float64, k int) ([]Record, error)
	Record(ctx context.Context, rec Record) error
}

// Scored pairs a record with its similarity to the query fingerprint.
type Scored struct {
	Record
	Similarity float64 `json:"similarity"`
}

// RetrievedContext is the transient top-k bundle handed to the evaluator,
// rebuilt every cycle. Degraded is set when the store could not be reached
// and the bundle is empty for that reason rather than for lack of history.
type RetrievedContext struct {
	Records  []Scored `json:"records"`
	Degraded bool     `json:"degraded"`
}

// Empty reports whether the bundle carries no grounding.
func (rc RetrievedContext) Empty() bool { return len(rc.Records) == 0 }

// Cosine returns the cosine similarity of two fingerprints, 0 when either
// has no magnitude or the dimensions disagree.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
