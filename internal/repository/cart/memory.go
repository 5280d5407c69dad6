package cart

import (
	"context"
	"sync"

	"yogurt-storefront/internal/domain"
)

type memoryRepo struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemory returns a process-local repository. Snapshots do not survive a
// restart.
func NewMemory() Repository {
	return &memoryRepo{snapshots: make(map[string][]byte)}
}

func (r *memoryRepo) Load(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	payload, ok := r.snapshots[key]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (r *memoryRepo) Save(_ context.Context, key string, payload []byte) error {
	stored := make([]byte, len(payload))
	copy(stored, payload)
	r.mu.Lock()
	r.snapshots[key] = stored
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.snapshots, key)
	r.mu.Unlock()
	return nil
}
