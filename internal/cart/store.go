// Package cart holds the shopper's pending purchase selection. A Store is the
// single source of truth for one shopper: pages read it and mutate it, and
// every mutation is written through to a snapshot repository so the cart
// survives restarts of the storefront.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/domain"
	cartrepo "yogurt-storefront/internal/repository/cart"
)

// Store owns one cart. Mutations never fail from the caller's point of view;
// persistence is best-effort and failures leave the in-memory cart intact.
type Store struct {
	key    string
	repo   cartrepo.Repository
	logger *log.Logger

	mu    sync.Mutex
	items []domain.CartItem

	// loadErr is set when the snapshot could not be read for a reason other
	// than its absence.
	loadErr error

	// notifyMu is taken before mu is released so listeners observe
	// mutations in the order they were applied.
	notifyMu  sync.Mutex
	listeners map[int]func(domain.Cart)
	nextID    int
}

// Open restores the cart persisted under key. A missing snapshot yields an
// empty cart; a malformed one is discarded.
func Open(ctx context.Context, repo cartrepo.Repository, key string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Store{
		key:       key,
		repo:      repo,
		logger:    logger,
		items:     []domain.CartItem{},
		listeners: make(map[int]func(domain.Cart)),
	}
	s.restore(ctx)
	return s
}

// Key is the snapshot key the store persists under.
func (s *Store) Key() string {
	return s.key
}

// AddItem increments the quantity of an existing row with the same ID or
// appends a new row. A non-positive quantity counts as 1 and the row
// quantity saturates at domain.MaxQuantity.
func (s *Store) AddItem(ctx context.Context, item domain.CartItem) {
	if item.ID == "" {
		return
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	item.Quantity = domain.ClampQuantity(item.Quantity)
	s.mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity = addQuantity(items[i].Quantity, item.Quantity)
				return items
			}
		}
		return append(items, item)
	})
}

// UpdateQuantity sets the quantity of the row with the given ID. A quantity
// of zero or less removes the row; larger than domain.MaxQuantity is capped.
// Unknown IDs are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, id)
		return
	}
	quantity = domain.ClampQuantity(quantity)
	s.mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = quantity
				return items
			}
		}
		return nil
	})
}

// RemoveItem deletes the row with the given ID. Unknown IDs are ignored.
func (s *Store) RemoveItem(ctx context.Context, id string) {
	s.mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...)
			}
		}
		return nil
	})
}

// Clear empties the cart and persists the empty state.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func([]domain.CartItem) []domain.CartItem {
		return []domain.CartItem{}
	})
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Cart{Items: s.items}.Clone()
}

func (s *Store) Len() int {
	return s.Cart().Len()
}

func (s *Store) TotalQuantity() int {
	return s.Cart().TotalQuantity()
}

// Total is recomputed from the rows on every call.
func (s *Store) Total() decimal.Decimal {
	return s.Cart().Total()
}

// Subscribe registers fn to receive the cart after every mutation. Listeners
// run synchronously on the mutating goroutine and must not mutate the store.
// The returned func unsubscribes.
func (s *Store) Subscribe(fn func(domain.Cart)) (cancel func()) {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.listeners, id)
			s.notifyMu.Unlock()
		})
	}
}

// mutate applies fn to a private copy of the latest items. fn returns the
// new items, or nil when nothing changed.
func (s *Store) mutate(ctx context.Context, fn func([]domain.CartItem) []domain.CartItem) {
	s.mu.Lock()
	working := make([]domain.CartItem, len(s.items))
	copy(working, s.items)
	next := fn(working)
	if next == nil {
		s.mu.Unlock()
		return
	}
	s.items = next
	snapshot := domain.Cart{Items: next}.Clone()
	s.persist(ctx, snapshot)

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range s.listeners {
		fn(snapshot.Clone())
	}
}

func (s *Store) persist(ctx context.Context, c domain.Cart) {
	payload, err := json.Marshal(c.Items)
	if err != nil {
		s.logger.Printf("cart store: encode key=%s error=%v", s.key, err)
		return
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), s.key, payload); err != nil {
		s.logger.Printf("cart store: persist key=%s error=%v", s.key, err)
	}
}

func (s *Store) restore(ctx context.Context) {
	payload, err := s.repo.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("cart store: load key=%s error=%v", s.key, err)
			s.loadErr = err
		}
		return
	}
	items, err := decodeSnapshot(payload)
	if err != nil {
		s.logger.Printf("cart store: discard malformed snapshot key=%s error=%v", s.key, err)
		if err := s.repo.Delete(ctx, s.key); err != nil {
			s.logger.Printf("cart store: delete key=%s error=%v", s.key, err)
		}
		return
	}
	s.items = items
}

// decodeSnapshot parses a persisted JSON array of items. Rows without an ID
// or with a non-positive quantity are dropped and duplicate IDs are merged,
// so a restored cart always holds at most one row per ID.
func decodeSnapshot(payload []byte) ([]domain.CartItem, error) {
	var raw []domain.CartItem
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("snapshot is null")
	}
	items := make([]domain.CartItem, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, item := range raw {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		item.Quantity = domain.ClampQuantity(item.Quantity)
		if i, ok := index[item.ID]; ok {
			items[i].Quantity = addQuantity(items[i].Quantity, item.Quantity)
			continue
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	return items, nil
}

// addQuantity sums two row quantities already within [1, MaxQuantity],
// saturating at MaxQuantity.
func addQuantity(a, b int) int {
	return domain.ClampQuantity(a + b)
}

func (s *Store) subscribers() int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return len(s.listeners)
}
