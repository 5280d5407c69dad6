package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// OrderStatuses lists the statuses in fulfilment order.
var OrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
}

// Normalize maps unknown or empty statuses to processing.
func (s OrderStatus) Normalize() OrderStatus {
	for _, known := range OrderStatuses {
		if s == known {
			return s
		}
	}
	return OrderStatusProcessing
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

type ShippingMethod string

const (
	ShippingDelivery ShippingMethod = "delivery"
	ShippingPickup   ShippingMethod = "pickup"
)

// ShippingAddress holds the shopper contact and delivery fields.
type ShippingAddress struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}

// UnmarshalJSON accepts either an address object or a bare address string.
func (a *ShippingAddress) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Address)
	}
	var raw struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Address  string `json:"address"`
		City     string `json:"city"`
		ZipCode  string `json:"zipCode"`
		Postcode string `json:"postcode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = ShippingAddress{
		Name:    raw.Name,
		Email:   raw.Email,
		Phone:   raw.Phone,
		Address: raw.Address,
		City:    raw.City,
		ZipCode: raw.ZipCode,
	}
	if a.ZipCode == "" {
		a.ZipCode = raw.Postcode
	}
	return nil
}

// OrderItem is one line of a submitted order.
type OrderItem struct {
	ProductID ID              `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *Product        `json:"product,omitempty"`
}

func (i *OrderItem) UnmarshalJSON(data []byte) error {
	type plain OrderItem
	var raw struct {
		plain
		UnitPrice decimal.NullDecimal `json:"unit_price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = OrderItem(raw.plain)
	if i.ProductID == "" && i.Product != nil {
		i.ProductID = i.Product.ID
	}
	if i.Price.IsZero() && raw.UnitPrice.Valid {
		i.Price = raw.UnitPrice.Decimal
	}
	return nil
}

// Subtotal is Price × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order mirrors the backend order resource.
type Order struct {
	ID                ID              `json:"id"`
	OrderNumber       ID              `json:"order_number"`
	OrderDate         time.Time       `json:"order_date"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ShippingMethod    ShippingMethod  `json:"shipping_method"`
	Status            OrderStatus     `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UnmarshalJSON folds the backend's top-level contact fields into
// ShippingAddress when the nested value is only an address string.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var raw struct {
		plain
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		City     string `json:"city"`
		Postcode string `json:"postcode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order(raw.plain)
	addr := &o.ShippingAddress
	fill(&addr.Name, raw.Name)
	fill(&addr.Email, raw.Email)
	fill(&addr.Phone, raw.Phone)
	fill(&addr.City, raw.City)
	fill(&addr.ZipCode, raw.Postcode)
	if o.OrderNumber == "" {
		o.OrderNumber = o.ID
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = o.CreatedAt
	}
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// OrderRequest is the body of POST /api/orders/. Amounts are already
// formatted with two fraction digits.
type OrderRequest struct {
	Items           []OrderRequestItem `json:"items"`
	ShippingAddress ShippingAddress    `json:"shipping_address"`
	PaymentMethod   PaymentMethod      `json:"payment_method"`
	ShippingMethod  ShippingMethod     `json:"shipping_method"`
	TotalAmount     string             `json:"total_amount"`
}

type OrderRequestItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}
