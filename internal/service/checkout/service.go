// Package checkout turns a shopper's cart into a backend order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"yogurt-storefront/internal/domain"
)

// DeliveryFee is charged for delivery orders; pickup is free.
var DeliveryFee = decimal.NewFromInt(80)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingOrderID = errors.New("order response has no id")
)

// Input is the checkout form.
type Input struct {
	Name           string `form:"name" json:"name" validate:"required"`
	Email          string `form:"email" json:"email" validate:"required,email"`
	Phone          string `form:"phone" json:"phone" validate:"required"`
	Address        string `form:"address" json:"address" validate:"required_if=ShippingMethod delivery"`
	City           string `form:"city" json:"city" validate:"required_if=ShippingMethod delivery"`
	ZipCode        string `form:"zipCode" json:"zipCode" validate:"required_if=ShippingMethod delivery"`
	PaymentMethod  string `form:"paymentMethod" json:"paymentMethod" validate:"required,oneof=card cash"`
	ShippingMethod string `form:"shippingMethod" json:"shippingMethod" validate:"required,oneof=delivery pickup"`
}

func (in Input) normalized() Input {
	trim := strings.TrimSpace
	return Input{
		Name:           trim(in.Name),
		Email:          trim(in.Email),
		Phone:          trim(in.Phone),
		Address:        trim(in.Address),
		City:           trim(in.City),
		ZipCode:        trim(in.ZipCode),
		PaymentMethod:  strings.ToLower(trim(in.PaymentMethod)),
		ShippingMethod: strings.ToLower(trim(in.ShippingMethod)),
	}
}

// FieldError names one failing form field by its form name.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError is returned before any backend call when the form is
// incomplete.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "invalid checkout fields: " + strings.Join(names, ", ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// SubmitError means the order was not created. The cart is untouched and the
// shopper may retry.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return "submit order: " + e.Err.Error()
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Key() string
	Cart() domain.Cart
	Clear(ctx context.Context)
}

// Orders creates backend orders.
type Orders interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
}

// Summary is the priced view of a cart for a shipping method.
type Summary struct {
	Subtotal decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal
}

// Result is a created order.
type Result struct {
	OrderID string
	Order   *domain.Order
}

type Service struct {
	orders   Orders
	logger   *log.Logger
	validate *validator.Validate
	flight   singleflight.Group
}

func New(orders Orders, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{orders: orders, logger: logger, validate: v}
}

// Fee returns the shipping fee for method.
func Fee(method domain.ShippingMethod) decimal.Decimal {
	if method == domain.ShippingDelivery {
		return DeliveryFee
	}
	return decimal.Zero
}

// Quote prices cart for the given shipping method.
func Quote(cart domain.Cart, method domain.ShippingMethod) Summary {
	subtotal := cart.Total()
	fee := Fee(method)
	return Summary{Subtotal: subtotal, Fee: fee, Total: subtotal.Add(fee)}
}

// Validate checks the form without touching the cart or the backend.
func (s *Service) Validate(in Input) error {
	err := s.validate.Struct(in.normalized())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate checkout: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// Submit validates in, snapshots cart into an order request and creates the
// order. The cart is cleared only after the backend confirms the order with
// an id. Concurrent submissions for the same cart share one backend call.
func (s *Service) Submit(ctx context.Context, cart Cart, in Input) (*Result, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	in = in.normalized()

	v, err, shared := s.flight.Do(cart.Key(), func() (interface{}, error) {
		return s.submit(ctx, cart, in)
	})
	if shared {
		s.logger.Printf("checkout: joined in-flight submission key=%s", cart.Key())
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) submit(ctx context.Context, cart Cart, in Input) (*Result, error) {
	snapshot := cart.Cart()
	if snapshot.Empty() {
		return nil, ErrEmptyCart
	}

	req := BuildRequest(snapshot, in)
	order, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Printf("checkout: create order failed key=%s items=%d error=%v", cart.Key(), len(req.Items), err)
		return nil, &SubmitError{Err: err}
	}
	if order == nil || order.ID == "" {
		s.logger.Printf("checkout: create order returned no id key=%s", cart.Key())
		return nil, &SubmitError{Err: ErrMissingOrderID}
	}

	cart.Clear(ctx)
	s.logger.Printf("checkout: order created id=%s total=%s", order.ID, req.TotalAmount)
	return &Result{OrderID: order.ID.String(), Order: order}, nil
}

// BuildRequest converts a cart snapshot and form into the backend order
// body. Amounts carry two fraction digits.
func BuildRequest(snapshot domain.Cart, in Input) domain.OrderRequest {
	method := domain.ShippingMethod(in.ShippingMethod)
	items := make([]domain.OrderRequestItem, 0, snapshot.Len())
	for _, item := range snapshot.Items {
		items = append(items, domain.OrderRequestItem{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		})
	}
	return domain.OrderRequest{
		Items: items,
		ShippingAddress: domain.ShippingAddress{
			Name:    in.Name,
			Email:   in.Email,
			Phone:   in.Phone,
			Address: in.Address,
			City:    in.City,
			ZipCode: in.ZipCode,
		},
		PaymentMethod:  domain.PaymentMethod(in.PaymentMethod),
		ShippingMethod: method,
		TotalAmount:    Quote(snapshot, method).Total.StringFixed(2),
	}
}
