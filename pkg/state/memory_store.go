package state

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps documents in process, grouped by tenant. It backs the
// local collaborator and tests; nothing survives a restart.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	tenants map[string]map[string]memoryEntry[T]
	now     func() time.Time
}

type memoryEntry[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{tenants: map[string]map[string]memoryEntry[T]{}, now: time.Now}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (snapshot T, meta Meta, found bool, err error) {
	if err = ref.validate(); err != nil {
		return snapshot, meta, false, err
	}
	s.mu.RLock()
	entry, found := s.tenants[ref.Tenant][ref.Domain]
	s.mu.RUnlock()
	if !found {
		return snapshot, meta, false, nil
	}
	return cloneSnapshot(entry.snapshot), cloneMeta(entry.meta), true, nil
}

// Save replaces the stored document. A non-empty meta.ETag must match the
// current record's.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ref.validate(); err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	domains := s.tenants[ref.Tenant]
	if domains == nil {
		domains = map[string]memoryEntry[T]{}
		s.tenants[ref.Tenant] = domains
	}
	if current, ok := domains[ref.Domain]; ok && conflicts(meta.ETag, current.meta.ETag) {
		return Meta{}, ErrETagMismatch
	}
	saved := stamp(meta, s.now())
	domains[ref.Domain] = memoryEntry[T]{snapshot: cloneSnapshot(snapshot), meta: saved}
	return cloneMeta(saved), nil
}

// List returns the sorted domains stored for tenant.
func (s *MemoryStore[T]) List(_ context.Context, tenant string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Sorted(maps.Keys(s.tenants[tenant]))
	if names == nil {
		names = []string{}
	}
	return names, nil
}
