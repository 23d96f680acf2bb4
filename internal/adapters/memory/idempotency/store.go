package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
)

// DefaultRetention bounds how long a stored response may be replayed.
const DefaultRetention = 24 * time.Hour

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use. Records older than the retention window are
// treated as absent and pruned on write.
type Store struct {
	mu        sync.RWMutex
	m         map[idempotency.Fingerprint]idempotency.Record
	retention time.Duration
	now       func() time.Time
}

func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention, func() time.Time { return time.Now().UTC() })
}

// NewStoreWithRetention returns a store with a custom window and time source.
// A non-positive retention keeps records forever.
func NewStoreWithRetention(retention time.Duration, now func() time.Time) *Store {
	return &Store{
		m:         make(map[idempotency.Fingerprint]idempotency.Record),
		retention: retention,
		now:       now,
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok || s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.m {
		if s.expired(v) {
			delete(s.m, k)
		}
	}
	rec.Body = append([]byte(nil), rec.Body...)
	s.m[fp] = rec
	return nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	if s.retention <= 0 {
		return false
	}
	return s.now().Sub(rec.CreatedAt) > s.retention
}
