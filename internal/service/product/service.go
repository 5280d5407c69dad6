// Package product serves the storefront catalog from the backend, with a
// short-lived list cache.
package product

import (
	"context"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"yogurt-storefront/internal/backend"
	"yogurt-storefront/internal/domain"
)

const (
	CategorySweet = "sweet"
	CategoryFruit = "fruit"

	relatedLimit = 3
	catalogKey   = "products"
)

// BestSellerNames are featured on the home page.
var BestSellerNames = []string{
	"Peanut butter Greek yogurt",
	"Strawberry Greek yogurt",
	"Matcha Blueberry Greek yogurt",
	"Biscoff Greek yogurt",
}

// Backend is the part of the REST client the catalog needs.
type Backend interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Service struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger
	latest  *backend.Latest

	mu        sync.RWMutex
	products  []domain.Product
	fetchedAt time.Time
}

// New returns a catalog service. A ttl of zero disables the list cache.
func New(b Backend, ttl time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		backend: b,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		latest:  backend.NewLatest(),
	}
}

// List returns every product, from cache while it is fresh.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	if products, ok := s.cached(); ok {
		return products, nil
	}
	return s.refresh(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.backend.GetProduct(ctx, id)
}

// BestSellers returns the featured products in catalog order.
func (s *Service) BestSellers(ctx context.Context) ([]domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(BestSellerNames))
	for _, p := range products {
		if isBestSeller(p.Name) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ByCategory returns the products of one category ordered by numeric id.
func (s *Service) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0)
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	sortByID(out)
	return out, nil
}

// Related returns up to three other products sharing p's category.
func (s *Service) Related(ctx context.Context, p domain.Product) ([]domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, relatedLimit)
	for _, candidate := range products {
		if candidate.ID == p.ID || !strings.EqualFold(candidate.Category, p.Category) {
			continue
		}
		out = append(out, candidate)
		if len(out) == relatedLimit {
			break
		}
	}
	return out, nil
}

func (s *Service) cached() ([]domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ttl <= 0 || s.products == nil || s.now().Sub(s.fetchedAt) >= s.ttl {
		return nil, false
	}
	return copyProducts(s.products), true
}

// refresh fetches the list and stores it unless a later refresh already
// landed, in which case the newer cached list is returned instead.
func (s *Service) refresh(ctx context.Context) ([]domain.Product, error) {
	ticket := s.latest.Begin(catalogKey)
	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		s.mu.RLock()
		stale := s.products
		s.mu.RUnlock()
		if stale != nil {
			s.logger.Printf("catalog: refresh failed, serving stale list error=%v", err)
			return copyProducts(stale), nil
		}
		return nil, err
	}

	applied := s.latest.Commit(ticket, func() {
		s.mu.Lock()
		s.products = products
		s.fetchedAt = s.now()
		s.mu.Unlock()
	})
	if !applied {
		s.logger.Printf("catalog: discarded stale list count=%d", len(products))
		s.mu.RLock()
		defer s.mu.RUnlock()
		return copyProducts(s.products), nil
	}
	return copyProducts(products), nil
}

func isBestSeller(name string) bool {
	name = strings.TrimSpace(name)
	for _, n := range BestSellerNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// sortByID orders numeric ids numerically, then any others lexically.
func sortByID(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, aErr := strconv.Atoi(string(products[i].ID))
		b, bErr := strconv.Atoi(string(products[j].ID))
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return products[i].ID < products[j].ID
	})
}

func copyProducts(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	copy(out, in)
	return out
}
