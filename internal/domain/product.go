package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors the backend product resource.
type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Image returns the display image, falling back to the placeholder.
func (p Product) Image() string {
	if p.ImageURL == "" {
		return PlaceholderImage
	}
	return p.ImageURL
}

// PlaceholderImage is shown for products without an image.
const PlaceholderImage = "/static/placeholder.svg"
