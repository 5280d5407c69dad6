package httpserver

import "yogurt-storefront/internal/domain"

type cartResponse struct {
	Items         []cartItemResponse `json:"items"`
	Count         int                `json:"count"`
	TotalQuantity int                `json:"totalQuantity"`
	Total         string             `json:"total"`
}

type cartItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

func toCartResponse(c domain.Cart) cartResponse {
	items := make([]cartItemResponse, 0, c.Len())
	for _, item := range c.Items {
		items = append(items, cartItemResponse{
			ID:       item.ID,
			Name:     item.Name,
			Image:    item.Image,
			Price:    money(item.Price),
			Quantity: item.Quantity,
			Subtotal: money(item.Subtotal()),
		})
	}
	return cartResponse{
		Items:         items,
		Count:         c.Len(),
		TotalQuantity: c.TotalQuantity(),
		Total:         money(c.Total()),
	}
}

// snapshotItem captures the product fields a cart row keeps.
func snapshotItem(p domain.Product, quantity int) domain.CartItem {
	return domain.CartItem{
		ID:       p.ID.String(),
		Name:     p.Name,
		Image:    p.Image(),
		Price:    p.Price,
		Quantity: quantity,
	}
}
