package cache

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Coordinator timing defaults. The lease TTL must comfortably exceed the
// extraction invoker's hard timeout so a live builder never loses its lease.
const (
	DefaultLeaseTTL     = 90 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// BuildFunc produces a fresh entry for a key on cache miss.
type BuildFunc func(ctx context.Context) (*Entry, error)

// Coordinator implements single-flight builds over a shared Store: at most
// one concurrent build per key, with concurrent callers waiting for the
// builder's entry instead of re-invoking the model.
type Coordinator struct {
	store        Store
	leaseTTL     time.Duration
	pollInterval time.Duration
}

// NewCoordinator creates a coordinator over store. Zero durations select the
// defaults.
func NewCoordinator(store Store, leaseTTL, pollInterval time.Duration) *Coordinator {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Coordinator{store: store, leaseTTL: leaseTTL, pollInterval: pollInterval}
}

// Do returns the cached entry for key, building it at most once across all
// concurrent callers. The second return value reports whether the entry was
// served from the store rather than built by this caller.
//
// Store failures are fail-open: the build runs without coordination and the
// result is returned even if it cannot be persisted.
func (c *Coordinator) Do(ctx context.Context, key Key, build BuildFunc) (*Entry, bool, error) {
	entry, err := c.store.GetEntry(ctx, key)
	if err == nil {
		return entry, true, nil
	}
	if err != ErrNotFound {
		log.Printf("cache: read failed for key %s, proceeding without cache: %v", shortKey(key), err)
		entry, buildErr := build(ctx)
		return entry, false, buildErr
	}

	for {
		acquired, err := c.store.AcquireLease(ctx, key, c.leaseTTL)
		if err != nil {
			log.Printf("cache: lease acquire failed for key %s, proceeding without coordination: %v", shortKey(key), err)
			entry, buildErr := build(ctx)
			if buildErr == nil {
				c.putBestEffort(ctx, entry)
			}
			return entry, false, buildErr
		}

		if acquired {
			// Re-check under the lease: the entry may have landed between the
			// first read and the acquire.
			if entry, err := c.store.GetEntry(ctx, key); err == nil {
				c.releaseBestEffort(ctx, key)
				return entry, true, nil
			}

			entry, buildErr := build(ctx)
			if buildErr != nil {
				c.releaseBestEffort(ctx, key)
				return nil, false, buildErr
			}
			c.putBestEffort(ctx, entry)
			c.releaseBestEffort(ctx, key)
			return entry, false, nil
		}

		// Another caller holds the build lease. Wait for its entry to land,
		// then serve it; if the lease expires without an entry, loop back and
		// reclaim it.
		entry, err := c.waitForEntry(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if entry != nil {
			return entry, true, nil
		}
	}
}

// waitForEntry polls until the entry appears or the lease becomes free.
// A nil entry with nil error means the lease expired without a result.
func (c *Coordinator) waitForEntry(ctx context.Context, key Key) (*Entry, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(c.leaseTTL)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for extraction of key %s: %w", shortKey(key), ctx.Err())
		case <-ticker.C:
		}

		entry, err := c.store.GetEntry(ctx, key)
		if err == nil {
			return entry, nil
		}
		if err != ErrNotFound {
			log.Printf("cache: read failed while waiting on key %s: %v", shortKey(key), err)
		}

		if time.Now().After(deadline) {
			// Builder crashed or exceeded its lease. Let the caller retry the
			// acquire path and reclaim the lease.
			return nil, nil
		}
	}
}

func (c *Coordinator) putBestEffort(ctx context.Context, entry *Entry) {
	if err := c.store.PutEntry(ctx, entry); err != nil {
		log.Printf("cache: write failed for key %s: %v", shortKey(Key(entry.Key)), err)
	}
}

func (c *Coordinator) releaseBestEffort(ctx context.Context, key Key) {
	if err := c.store.ReleaseLease(ctx, key); err != nil {
		log.Printf("cache: lease release failed for key %s: %v", shortKey(key), err)
	}
}

// shortKey truncates long fingerprints for log lines.
func shortKey(key Key) string {
	if len(key) > 12 {
		return string(key[:12])
	}
	return string(key)
}
