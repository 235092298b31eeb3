package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/infra/breakers"
)

// DefaultQueryTimeout bounds a single store query; the pipeline never
// waits on retrieval longer than this.
const DefaultQueryTimeout = 2 * time.Second

// Retriever queries the store for the k most similar historical scenarios
// and normalizes them into a RetrievedContext. A failing store never fails
// the cycle: the retriever returns an empty, degraded bundle instead.
type Retriever struct {
	store   Store
	breaker *breakers.Breaker
	timeout time.Duration
}

// NewRetriever creates a retriever over the given store.
func NewRetriever(store Store) *Retriever {
	return &Retriever{
		store:   store,
		breaker: breakers.New("memory_store"),
		timeout: DefaultQueryTimeout,
	}
}

// WithTimeout overrides the per-query timeout.
func (r *Retriever) WithTimeout(d time.Duration) *Retriever {
	r.timeout = d
	return r
}

// BreakerState exposes the store breaker for the metrics gauge.
func (r *Retriever) BreakerState() float64 { return r.breaker.StateValue() }

// Retrieve returns the top-k records by similarity, descending, ties broken
// most-recent-first. Store timeouts and unavailability degrade to an empty
// bundle with Degraded set; downstream the evaluator caps its confidence.
func (r *Retriever) Retrieve(ctx context.Context, fingerprint []float64, k int) RetrievedContext {
	if k <= 0 {
		return RetrievedContext{}
	}

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.breaker.Execute(func() (any, error) {
		return r.store.Query(qctx, fingerprint, k)
	})
	if err != nil {
		log.Warn().Err(err).Msg("memory store query failed, retrieval degraded")
		return RetrievedContext{Degraded: true}
	}
	records := res.([]Record)

	scored := make([]Scored, 0, len(records))
	for _, rec := range records {
		scored = append(scored, Scored{Record: rec, Similarity: Cosine(fingerprint, rec.Fingerprint)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	return RetrievedContext{Records: scored}
}
