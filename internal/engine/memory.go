package engine

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default entity store: tenant-scoped, concurrency
// safe, optimistic-versioned. Useful for tests and for running manifests
// with no configured backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[memKey]*Instance
}

type memKey struct {
	tenant string
	entity string
	id     string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[memKey]*Instance)}
}

func (s *MemoryStore) Get(_ context.Context, tenantID, entity, id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.data[memKey{tenantID, entity, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return inst.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, tenantID string, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey{tenantID, inst.Entity, inst.ID}
	if cur, ok := s.data[key]; ok && cur.Version != inst.Version-1 {
		return ErrVersionConflict
	} else if !ok && inst.Version != 1 {
		return ErrVersionConflict
	}
	s.data[key] = inst.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, tenantID, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey{tenantID, entity, id}
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, tenantID, entity string) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for key, inst := range s.data {
		if key.tenant == tenantID && key.entity == entity {
			out = append(out, inst.Clone())
		}
	}
	sortInstances(out)
	return out, nil
}

func sortInstances(list []*Instance) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].ID < list[j-1].ID; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

// MemoryIdempotencyStore is the in-memory IdempotencyStore. Expiry uses
// an injectable clock so TTL boundaries are testable.
type MemoryIdempotencyStore struct {
	mu  sync.Mutex
	now func() time.Time
	rec map[idemKey]idemRecord
}

type idemKey struct {
	tenant string
	key    string
}

type idemRecord struct {
	result    []byte
	expiresAt time.Time
}

// NewMemoryIdempotencyStore returns an empty store reading time from
// now, or time.Now when now is nil.
func NewMemoryIdempotencyStore(now func() time.Time) *MemoryIdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotencyStore{now: now, rec: make(map[idemKey]idemRecord)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, tenantID, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey{tenantID, key}
	rec, ok := s.rec[k]
	if !ok {
		return nil, false, nil
	}
	if !rec.expiresAt.After(s.now()) {
		delete(s.rec, k)
		return nil, false, nil
	}
	out := make([]byte, len(rec.result))
	copy(out, rec.result)
	return out, true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, tenantID, key string, result []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(result))
	copy(stored, result)
	s.rec[idemKey{tenantID, key}] = idemRecord{result: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now()
	var n int64
	for k, rec := range s.rec {
		if !rec.expiresAt.After(cutoff) {
			delete(s.rec, k)
			n++
		}
	}
	return n, nil
}
