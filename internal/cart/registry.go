package cart

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	cartrepo "yogurt-storefront/internal/repository/cart"
)

// KeyPrefix is the fixed storage key every snapshot is stored under,
// suffixed with the shopper session ID.
const KeyPrefix = "yogurt-cart:"

// Registry owns one Store per shopper session for the whole process, so
// every page rendered for a session shares the same cart.
type Registry struct {
	repo   cartrepo.Repository
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ready    chan struct{}
	store    *Store
	lastUsed time.Time
}

func NewRegistry(repo cartrepo.Repository, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the session's store, restoring it from the repository on first
// use. Concurrent first calls for the same session share one restore.
func (r *Registry) Get(ctx context.Context, sessionID string) *Store {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		<-e.ready
		return e.store
	}
	e = &entry{ready: make(chan struct{}), lastUsed: r.now()}
	r.entries[sessionID] = e
	r.mu.Unlock()

	// The store outlives the request that opened it, so a cancelled request
	// must not turn a failed load into an empty cart.
	e.store = Open(context.WithoutCancel(ctx), r.repo, KeyPrefix+sessionID, r.logger)
	if e.store.loadErr != nil {
		// Not cached: a later Get retries the load instead of letting the
		// empty store overwrite the snapshot on its first mutation.
		r.mu.Lock()
		if r.entries[sessionID] == e {
			delete(r.entries, sessionID)
		}
		r.mu.Unlock()
		r.logger.Printf("cart registry: restore failed, not caching session=%s", sessionID)
	}
	close(e.ready)
	return e.store
}

// Sweep forgets stores that have not been used for idle and have no
// subscribers. Their snapshots stay in the repository and are restored on
// the next Get. It returns the number of stores released.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for id, e := range r.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.lastUsed.After(cutoff) || e.store.subscribers() > 0 {
			continue
		}
		delete(r.entries, id)
		released++
	}
	return released
}

// Len is the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Printf("cart registry: released=%d live=%d", n, r.Len())
			}
		}
	}
}
