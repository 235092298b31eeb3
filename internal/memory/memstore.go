package memory

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the in-process Store used for tests and paper runs. Records
// are capped at maxRecords, oldest evicted first.
type MemStore struct {
	mu         sync.RWMutex
	records    []Record
	maxRecords int
}

// NewMemStore creates an in-memory store capped at maxRecords (512 when
// non-positive).
func NewMemStore(maxRecords int) *MemStore {
	if maxRecords <= 0 {
		maxRecords = 512
	}
	return &MemStore{maxRecords: maxRecords}
}

// NewAuto picks the redis-backed store when REDIS_ADDR is set, the
// in-memory store capped at maxRecords otherwise. The redis constructor is
// injected to keep this package import-clean of the adapter.
func NewAuto(maxRecords int, redisFactory func(addr string) Store) Store {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && redisFactory != nil {
		return redisFactory(addr)
	}
	return NewMemStore(maxRecords)
}

// Query returns all candidate records; ranking happens in the retriever.
func (s *MemStore) Query(ctx context.Context, fingerprint []float64, k int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Record appends a scenario, filling ID and timestamp when absent.
func (s *MemStore) Record(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.maxRecords {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}
	return nil
}

// Len reports the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
