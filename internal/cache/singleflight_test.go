package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
)

func TestCoordinatorServesCachedEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	coord := NewCoordinator(store, time.Second, 10*time.Millisecond)

	if err := store.PutEntry(ctx, &Entry{Key: "k1", Result: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	entry, fromStore, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		t.Fatal("build must not run on cache hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !fromStore {
		t.Error("fromStore = false, want true")
	}
	if entry.Key != "k1" {
		t.Errorf("entry key = %q", entry.Key)
	}
}

func TestCoordinatorSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	coord := NewCoordinator(store, 5*time.Second, 5*time.Millisecond)

	var builds atomic.Int32
	build := func(context.Context) (*Entry, error) {
		builds.Add(1)
		time.Sleep(50 * time.Millisecond) // hold the lease while others arrive
		return &Entry{Key: "k1", Result: json.RawMessage(`{"n":1}`)}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Entry, callers)
	fromStore := make([]bool, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], fromStore[i], errs[i] = coord.Do(ctx, "k1", build)
		}(i)
	}
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Fatalf("build ran %d times, want 1", got)
	}

	builders := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if string(results[i].Result) != `{"n":1}` {
			t.Errorf("caller %d got result %s", i, results[i].Result)
		}
		if !fromStore[i] {
			builders++
		}
	}
	if builders != 1 {
		t.Errorf("%d callers report building, want 1", builders)
	}
}

func TestCoordinatorBuildErrorReleasesLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	coord := NewCoordinator(store, 5*time.Second, 5*time.Millisecond)

	buildErr := errors.New("model unavailable")
	_, _, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		return nil, buildErr
	})
	if !errors.Is(err, buildErr) {
		t.Fatalf("Do = %v, want build error", err)
	}

	// The failed build must not leave the key locked.
	entry, fromStore, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		return &Entry{Key: "k1", Result: json.RawMessage(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if fromStore {
		t.Error("second Do served from store, want fresh build")
	}
	if entry == nil {
		t.Fatal("second Do returned nil entry")
	}
}

func TestCoordinatorReclaimsExpiredLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	coord := NewCoordinator(store, 30*time.Millisecond, 5*time.Millisecond)

	// Simulate a crashed builder: lease held, no entry ever lands.
	if ok, err := store.AcquireLease(ctx, "k1", 30*time.Millisecond); err != nil || !ok {
		t.Fatalf("seed lease = (%v, %v)", ok, err)
	}

	var builds atomic.Int32
	entry, fromStore, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		builds.Add(1)
		return &Entry{Key: "k1", Result: json.RawMessage(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if fromStore {
		t.Error("fromStore = true, want reclaimed build")
	}
	if entry == nil || builds.Load() != 1 {
		t.Fatalf("entry=%v builds=%d, want one reclaimed build", entry, builds.Load())
	}
}

func TestCoordinatorWaiterCancellation(t *testing.T) {
	store := NewMemoryStore(0)
	coord := NewCoordinator(store, 5*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	if ok, err := store.AcquireLease(ctx, "k1", 5*time.Second); err != nil || !ok {
		t.Fatalf("seed lease = (%v, %v)", ok, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	_, _, err := coord.Do(waitCtx, "k1", func(context.Context) (*Entry, error) {
		t.Fatal("build must not run while another caller holds the lease")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do = %v, want deadline exceeded", err)
	}
}

func TestCoordinatorFailsOpenOnLeaseError(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	coord := NewCoordinator(store, time.Second, 5*time.Millisecond)

	store.EXPECT().GetEntry(gomock.Any(), Key("k1")).Return(nil, ErrNotFound)
	store.EXPECT().AcquireLease(gomock.Any(), Key("k1"), gomock.Any()).
		Return(false, errors.New("lease backend down"))
	// The uncoordinated build result is still persisted best-effort.
	store.EXPECT().PutEntry(gomock.Any(), gomock.Any()).Return(nil)

	entry, fromStore, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		return &Entry{Key: "k1", Result: json.RawMessage(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if fromStore || entry == nil {
		t.Fatalf("entry=%v fromStore=%v, want uncoordinated build", entry, fromStore)
	}
}

// failingReadStore wraps a working store with a broken read path.
type failingReadStore struct {
	*MemoryStore
	readErr error
}

func (s *failingReadStore) GetEntry(context.Context, Key) (*Entry, error) {
	return nil, s.readErr
}

func TestCoordinatorFailsOpenOnReadError(t *testing.T) {
	ctx := context.Background()
	store := &failingReadStore{
		MemoryStore: NewMemoryStore(0),
		readErr:     errors.New("firestore unavailable"),
	}
	coord := NewCoordinator(store, time.Second, 5*time.Millisecond)

	var builds atomic.Int32
	entry, fromStore, err := coord.Do(ctx, "k1", func(context.Context) (*Entry, error) {
		builds.Add(1)
		return &Entry{Key: "k1", Result: json.RawMessage(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if fromStore {
		t.Error("fromStore = true, want direct build")
	}
	if entry == nil || builds.Load() != 1 {
		t.Fatalf("entry=%v builds=%d, want one direct build", entry, builds.Load())
	}
}
