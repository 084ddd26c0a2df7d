package kvstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory Store. Expired rows are
// dropped lazily on read. Default backend; also used by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

type memoryRow struct {
	value     []byte
	expiresAt time.Time // zero = never
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]memoryRow)}
}

func compositeKey(partition, row string) string {
	return partition + ":" + row
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, partition, row string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	key := compositeKey(partition, row)

	s.mu.RLock()
	r, ok := s.rows[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !r.expiresAt.IsZero() && time.Now().After(r.expiresAt) {
		s.mu.Lock()
		delete(s.rows, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]byte, len(r.value))
	copy(out, r.value)
	return out, nil
}

// Set implements Store.Set. The row is fully replaced.
func (s *MemoryStore) Set(ctx context.Context, partition, row string, value []byte, expiry time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if expiry > 0 {
		expiresAt = time.Now().Add(expiry)
	}

	s.mu.Lock()
	s.rows[compositeKey(partition, row)] = memoryRow{value: stored, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Delete implements Store.Delete. Deleting an absent row is not an error.
func (s *MemoryStore) Delete(ctx context.Context, partition, row string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	delete(s.rows, compositeKey(partition, row))
	s.mu.Unlock()
	return nil
}

// Len returns the number of live rows, counting rows past their store-level
// expiry as gone. Exposed for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	now := time.Now()
	for _, r := range s.rows {
		if r.expiresAt.IsZero() || now.Before(r.expiresAt) {
			n++
		}
	}
	return n
}
