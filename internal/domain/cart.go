package domain

import "github.com/shopspring/decimal"

// MaxQuantity caps the quantity of a single cart row.
const MaxQuantity = 999

// ClampQuantity bounds n to [0, MaxQuantity].
func ClampQuantity(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxQuantity:
		return MaxQuantity
	}
	return n
}

// CartItem is one line of the cart. Name, Image and Price are snapshotted
// when the product is added.
type CartItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal is Price × Quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered collection of items with at most one row per ID.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Len is the number of distinct rows.
func (c Cart) Len() int {
	return len(c.Items)
}

// Empty reports whether the cart has no rows.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// TotalQuantity sums quantities across rows.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Total is Σ(price × quantity), computed on every call.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Find returns the row with the given id.
func (c Cart) Find(id string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}

// Clone returns a deep copy so callers cannot alias store state.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{Items: []CartItem{}}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
