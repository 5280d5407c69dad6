package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"yogurt-storefront/internal/domain"
	cartrepo "yogurt-storefront/internal/repository/cart"
)

func TestRegistry_SameSessionSharesStore(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(cartrepo.NewMemory(), nil)

	a := reg.Get(ctx, "s1")
	b := reg.Get(ctx, "s1")
	other := reg.Get(ctx, "s2")

	if a != b {
		t.Fatalf("expected the same store for one session")
	}
	if a == other {
		t.Fatalf("expected distinct stores per session")
	}
	if a.Key() != KeyPrefix+"s1" {
		t.Fatalf("unexpected key %s", a.Key())
	}
}

// flakyRepo fails the first Load and serves the wrapped repository after.
type flakyRepo struct {
	cartrepo.Repository
	mu    sync.Mutex
	fails int
}

func (f *flakyRepo) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	f.mu.Unlock()
	return f.Repository.Load(ctx, key)
}

func TestRegistry_FailedRestoreIsRetried(t *testing.T) {
	ctx := context.Background()
	mem := cartrepo.NewMemory()
	if err := mem.Save(ctx, KeyPrefix+"s1", []byte(`[{"id":"1","name":"Peanut butter","price":"120","quantity":2}]`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg := NewRegistry(&flakyRepo{Repository: mem, fails: 1}, nil)

	first := reg.Get(ctx, "s1")
	if first.Len() != 0 {
		t.Fatalf("expected empty cart while the repository is failing")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected failed restore not cached")
	}

	second := reg.Get(ctx, "s1")
	if second == first {
		t.Fatalf("expected a fresh store after a failed restore")
	}
	if second.TotalQuantity() != 2 {
		t.Fatalf("expected snapshot restored on retry, got %+v", second.Cart())
	}
	if reg.Len() != 1 {
		t.Fatalf("expected restored store cached")
	}
}

func TestRegistry_ConcurrentGetOpensOnce(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(cartrepo.NewMemory(), nil)

	stores := make([]*Store, 20)
	var wg sync.WaitGroup
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i] = reg.Get(ctx, "s1")
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		if s != stores[0] {
			t.Fatalf("expected a single store instance")
		}
	}
}

func TestRegistry_SweepReleasesIdleAndRestores(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(cartrepo.NewMemory(), nil)
	reg.now = func() time.Time { return now }

	reg.Get(ctx, "s1").AddItem(ctx, item("1", 120, 2))

	now = now.Add(time.Hour)
	if n := reg.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("expected one store released, got %d", n)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no live stores")
	}

	restored := reg.Get(ctx, "s1")
	if restored.TotalQuantity() != 2 {
		t.Fatalf("expected cart restored after sweep, got %+v", restored.Cart())
	}
}

func TestRegistry_SweepKeepsSubscribedStores(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(cartrepo.NewMemory(), nil)
	reg.now = func() time.Time { return now }

	cancel := reg.Get(ctx, "s1").Subscribe(func(domain.Cart) {})
	defer cancel()

	now = now.Add(time.Hour)
	if n := reg.Sweep(time.Minute); n != 0 {
		t.Fatalf("expected subscribed store kept, released %d", n)
	}
}
