// Package redisstore is the redis-backed playbook store: records live as
// JSON blobs in a capped list, ranked client-side by the retriever.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/sawpanic/signalrun/internal/memory"
)

const (
	listKey    = "signalrun:playbooks"
	opTimeout  = 500 * time.Millisecond
	maxRecords = 512
)

// Store implements memory.Store over a redis list.
type Store struct {
	r *redis.Client
}

// New connects a store to the redis instance at addr.
func New(addr string) *Store {
	return &Store{r: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewFactory adapts New to the memory.NewAuto constructor signature.
func NewFactory(addr string) memory.Store { return New(addr) }

// Query fetches the candidate window; similarity ranking happens in the
// retriever. The fingerprint argument only bounds the fetch, it is not a
// server-side filter.
func (s *Store) Query(ctx context.Context, fingerprint []float64, k int) ([]memory.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.r.LRange(ctx, listKey, 0, maxRecords-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis playbook query: %w", err)
	}

	records := make([]memory.Record, 0, len(raw))
	for _, blob := range raw {
		var rec memory.Record
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			// A single corrupt blob must not poison retrieval.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Record prepends a scenario and trims the list to its cap.
func (s *Store) Record(ctx context.Context, rec memory.Record) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal playbook record: %w", err)
	}

	pipe := s.r.TxPipeline()
	pipe.LPush(ctx, listKey, blob)
	pipe.LTrim(ctx, listKey, 0, maxRecords-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis playbook record: %w", err)
	}
	return nil
}
