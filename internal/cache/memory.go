package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory cache before LRU eviction kicks in.
const DefaultMaxEntries = 256

// MemoryStore implements Store with in-process storage and LRU eviction.
// It satisfies the single-flight contract only within one process, so it is
// suitable for local development and tests, not multi-worker deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[Key]*list.Element // value: *memoryEntry
	order      *list.List            // front = most recently used
	leases     map[Key]memoryLease
	maxEntries int
	hits       int64
	misses     int64
	now        func() time.Time
}

type memoryEntry struct {
	key   Key
	entry Entry
}

type memoryLease struct {
	owner   string
	expires time.Time
}

// NewMemoryStore creates an in-memory store bounded by maxEntries
// (DefaultMaxEntries if <= 0).
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make(map[Key]*list.Element),
		order:      list.New(),
		leases:     make(map[Key]memoryLease),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// GetEntry returns a copy of the entry for key, or ErrNotFound.
func (s *MemoryStore) GetEntry(_ context.Context, key Key) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	s.order.MoveToFront(el)
	me := el.Value.(*memoryEntry)
	me.entry.LastAccess = s.now()
	cp := me.entry
	return &cp, nil
}

// PutEntry stores a copy of entry, evicting least-recently-used entries if
// the bound is exceeded.
func (s *MemoryStore) PutEntry(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(entry.Key)
	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.LastAccess = s.now()

	if el, ok := s.entries[key]; ok {
		el.Value.(*memoryEntry).entry = cp
		s.order.MoveToFront(el)
		return nil
	}
	s.entries[key] = s.order.PushFront(&memoryEntry{key: key, entry: cp})

	for s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Stats returns aggregate counters.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEntries: int64(len(s.entries)),
		HitCount:     s.hits,
		MissCount:    s.misses,
	}
	for key := range s.entries {
		if key.IsSample() {
			stats.SampleEntries++
		}
	}
	return stats, nil
}

// RecordHit bumps the global and per-entry hit counters.
func (s *MemoryStore) RecordHit(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits++
	if el, ok := s.entries[key]; ok {
		me := el.Value.(*memoryEntry)
		me.entry.HitCount++
		me.entry.LastAccess = s.now()
	}
	return nil
}

// RecordMiss bumps the global miss counter.
func (s *MemoryStore) RecordMiss(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
	return nil
}

// AcquireLease takes the build lease for key unless a live lease exists.
func (s *MemoryStore) AcquireLease(_ context.Context, key Key, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lease, ok := s.leases[key]; ok && s.now().Before(lease.expires) {
		return false, nil
	}
	s.leases[key] = memoryLease{owner: "local", expires: s.now().Add(ttl)}
	return true, nil
}

// ReleaseLease drops the build lease for key.
func (s *MemoryStore) ReleaseLease(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}
