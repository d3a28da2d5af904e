// Package cache provides content-addressable persistence for structured
// report results, plus the cross-process single-flight coordination built
// on top of it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=cache

// ErrNotFound is returned by GetEntry when no entry exists for a key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one cached structuring result. The result payload is immutable
// once written; only HitCount and LastAccess mutate afterwards.
type Entry struct {
	Key        string          `firestore:"key"`
	SampleID   string          `firestore:"sampleId,omitempty"`
	Result     json.RawMessage `firestore:"result"`
	CreatedAt  time.Time       `firestore:"createdAt"`
	HitCount   int64           `firestore:"hitCount"`
	LastAccess time.Time       `firestore:"lastAccess"`
}

// Stats are aggregate counters for operational visibility.
type Stats struct {
	TotalEntries  int64 `json:"total_entries"`
	SampleEntries int64 `json:"sample_entries"`
	HitCount      int64 `json:"hit_count"`
	MissCount     int64 `json:"miss_count"`
}

// Store is the persistence contract shared by all worker processes. A
// multi-worker deployment must use a shared backend (Firestore); the
// in-memory implementation exists for local development and tests.
//
// Implementations must provide atomic entry writes (a reader never observes
// a partially written entry) and monotonic counters.
type Store interface {
	// GetEntry returns the entry for key, or ErrNotFound.
	GetEntry(ctx context.Context, key Key) (*Entry, error)
	// PutEntry writes an entry atomically, replacing any previous value.
	PutEntry(ctx context.Context, entry *Entry) error
	// Stats returns aggregate cache statistics.
	Stats(ctx context.Context) (Stats, error)

	// RecordHit bumps the global hit counter and the entry's hit count.
	RecordHit(ctx context.Context, key Key) error
	// RecordMiss bumps the global miss counter.
	RecordMiss(ctx context.Context) error

	// AcquireLease attempts to take the exclusive build lease for key.
	// It returns false if a live lease is held elsewhere. A lease whose
	// TTL has elapsed is considered dead and may be taken over.
	AcquireLease(ctx context.Context, key Key, ttl time.Duration) (bool, error)
	// ReleaseLease releases the build lease for key if this store instance
	// holds it.
	ReleaseLease(ctx context.Context, key Key) error
}
