// Package order builds the order status page from the backend order and its
// products.
package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"yogurt-storefront/internal/domain"
)

// ErrMissingOrderID is returned when the status page is opened without an id.
var ErrMissingOrderID = errors.New("order id is required")

// DefaultDeliveryWindow estimates delivery when the backend gives no estimate.
const DefaultDeliveryWindow = 30 * time.Minute

const maxConcurrentLookups = 4

type Backend interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Step is one stage of the fulfilment progress bar.
type Step struct {
	Status  domain.OrderStatus
	Label   string
	Done    bool
	Current bool
}

// Item is an order line with display details resolved.
type Item struct {
	ProductID string
	Name      string
	Image     string
	Price     decimal.Decimal
	Quantity  int
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// View is everything the status page renders.
type View struct {
	Order             *domain.Order
	Status            domain.OrderStatus
	Steps             []Step
	EstimatedDelivery time.Time
	Items             []Item
}

// Subtotal sums the resolved item lines.
func (v View) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range v.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type Service struct {
	backend Backend
	logger  *log.Logger
}

func New(b Backend, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: b, logger: logger}
}

func (s *Service) Status(ctx context.Context, id string) (*View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingOrderID
	}
	o, err := s.backend.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	status := o.Status.Normalize()
	eta := o.EstimatedDelivery
	if eta.IsZero() {
		base := o.OrderDate
		if base.IsZero() {
			base = o.CreatedAt
		}
		if !base.IsZero() {
			eta = base.Add(DefaultDeliveryWindow)
		}
	}

	return &View{
		Order:             o,
		Status:            status,
		Steps:             Steps(status, o.ShippingMethod),
		EstimatedDelivery: eta,
		Items:             s.resolveItems(ctx, o.Items),
	}, nil
}

// resolveItems fills in product details, fetching concurrently the products
// the order did not embed. A failed lookup yields a placeholder line.
func (s *Service) resolveItems(ctx context.Context, lines []domain.OrderItem) []Item {
	items := make([]Item, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for idx, line := range lines {
		idx, line := idx, line
		items[idx] = Item{ProductID: line.ProductID.String(), Quantity: line.Quantity, Price: line.Price}
		if line.Product != nil && line.Product.Name != "" {
			items[idx].fill(*line.Product)
			continue
		}
		g.Go(func() error {
			p, err := s.backend.GetProduct(gctx, line.ProductID.String())
			if err != nil {
				s.logger.Printf("order status: product lookup failed product=%s error=%v", line.ProductID, err)
				items[idx].placeholder()
				return nil
			}
			items[idx].fill(*p)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (i *Item) fill(p domain.Product) {
	i.Name = p.Name
	i.Image = p.Image()
	if i.Price.IsZero() {
		i.Price = p.Price
	}
}

func (i *Item) placeholder() {
	i.Name = "Product #" + i.ProductID
	i.Image = domain.PlaceholderImage
	i.Price = decimal.Zero
}

// Steps renders the progress bar for status.
func Steps(status domain.OrderStatus, method domain.ShippingMethod) []Step {
	current := 0
	for i, s := range domain.OrderStatuses {
		if s == status {
			current = i
		}
	}
	steps := make([]Step, 0, len(domain.OrderStatuses))
	for i, s := range domain.OrderStatuses {
		steps = append(steps, Step{
			Status:  s,
			Label:   label(s, method),
			Done:    i <= current,
			Current: i == current,
		})
	}
	return steps
}

func label(s domain.OrderStatus, method domain.ShippingMethod) string {
	switch s {
	case domain.OrderStatusProcessing:
		return "Order received"
	case domain.OrderStatusPreparing:
		return "Preparing"
	case domain.OrderStatusReady:
		if method == domain.ShippingPickup {
			return "Ready for pickup"
		}
		return "Out for delivery"
	case domain.OrderStatusDelivered:
		if method == domain.ShippingPickup {
			return "Picked up"
		}
		return "Delivered"
	}
	return string(s)
}
