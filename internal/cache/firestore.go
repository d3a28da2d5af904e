package cache

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	entriesCollection = "reportCache"
	leasesCollection  = "cacheLeases"
	statsCollection   = "cacheStats"
	countersDoc       = "counters"
)

// FirestoreStore implements Store on Firestore. Document writes are atomic,
// counters go through transactions/field increments, and build leases are
// lease documents with an expiry, so the single-flight guarantee holds
// across worker processes sharing one project.
type FirestoreStore struct {
	client *firestore.Client
	owner  string // identifies this process in lease documents
}

type leaseDoc struct {
	Owner     string    `firestore:"owner"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		owner:  uuid.New().String(),
	}
}

// GetEntry returns the entry for key, or ErrNotFound.
func (s *FirestoreStore) GetEntry(ctx context.Context, key Key) (*Entry, error) {
	doc, err := s.client.Collection(entriesCollection).Doc(string(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	var entry Entry
	if err := doc.DataTo(&entry); err != nil {
		return nil, fmt.Errorf("parse cache entry: %w", err)
	}
	return &entry, nil
}

// PutEntry writes the entry as a single document. Firestore document writes
// are atomic, so a concurrent reader sees either the old or the new entry.
func (s *FirestoreStore) PutEntry(ctx context.Context, entry *Entry) error {
	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.LastAccess = time.Now()
	_, err := s.client.Collection(entriesCollection).Doc(cp.Key).Set(ctx, &cp)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Stats counts entries and reads the global hit/miss counters.
func (s *FirestoreStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	iter := s.client.Collection(entriesCollection).Select("sampleId").Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Stats{}, fmt.Errorf("iterate cache entries: %w", err)
		}
		stats.TotalEntries++
		if Key(doc.Ref.ID).IsSample() {
			stats.SampleEntries++
		}
	}

	doc, err := s.client.Collection(statsCollection).Doc(countersDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return stats, nil
		}
		return Stats{}, fmt.Errorf("get cache counters: %w", err)
	}
	var counters struct {
		Hits   int64 `firestore:"hits"`
		Misses int64 `firestore:"misses"`
	}
	if err := doc.DataTo(&counters); err != nil {
		return Stats{}, fmt.Errorf("parse cache counters: %w", err)
	}
	stats.HitCount = counters.Hits
	stats.MissCount = counters.Misses
	return stats, nil
}

// RecordHit bumps the global hit counter and the entry's hit count.
func (s *FirestoreStore) RecordHit(ctx context.Context, key Key) error {
	_, err := s.client.Collection(statsCollection).Doc(countersDoc).Set(ctx, map[string]interface{}{
		"hits": firestore.Increment(1),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("record cache hit: %w", err)
	}
	_, err = s.client.Collection(entriesCollection).Doc(string(key)).Update(ctx, []firestore.Update{
		{Path: "hitCount", Value: firestore.Increment(1)},
		{Path: "lastAccess", Value: time.Now()},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("bump entry hit count: %w", err)
	}
	return nil
}

// RecordMiss bumps the global miss counter.
func (s *FirestoreStore) RecordMiss(ctx context.Context) error {
	_, err := s.client.Collection(statsCollection).Doc(countersDoc).Set(ctx, map[string]interface{}{
		"misses": firestore.Increment(1),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("record cache miss: %w", err)
	}
	return nil
}

// AcquireLease takes the build lease for key in a transaction. A lease whose
// expiry has passed is treated as dead and taken over, so a crashed builder
// cannot deadlock waiters.
func (s *FirestoreStore) AcquireLease(ctx context.Context, key Key, ttl time.Duration) (bool, error) {
	ref := s.client.Collection(leasesCollection).Doc(string(key))
	acquired := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var lease leaseDoc
			if err := doc.DataTo(&lease); err != nil {
				return err
			}
			if time.Now().Before(lease.ExpiresAt) {
				acquired = false
				return nil
			}
		}
		acquired = true
		return tx.Set(ref, leaseDoc{
			Owner:     s.owner,
			ExpiresAt: time.Now().Add(ttl),
		})
	})
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return acquired, nil
}

// ReleaseLease deletes the lease document if this process owns it.
func (s *FirestoreStore) ReleaseLease(ctx context.Context, key Key) error {
	ref := s.client.Collection(leasesCollection).Doc(string(key))

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		var lease leaseDoc
		if err := doc.DataTo(&lease); err != nil {
			return err
		}
		if lease.Owner != s.owner {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
