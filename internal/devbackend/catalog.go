package devbackend

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/domain"
)

type productSeed struct {
	Name        string
	Description string
	Price       string
	Stock       int
	Category    string
}

var seeds = []productSeed{
	{Name: "Peanut butter Greek yogurt", Description: "Thick yogurt swirled with roasted peanut butter", Price: "120.00", Stock: 40, Category: "sweet"},
	{Name: "Strawberry Greek yogurt", Description: "Fresh strawberry compote on strained yogurt", Price: "120.00", Stock: 35, Category: "fruit"},
	{Name: "Matcha Blueberry Greek yogurt", Description: "Uji matcha with wild blueberries", Price: "150.00", Stock: 20, Category: "fruit"},
	{Name: "Biscoff Greek yogurt", Description: "Lotus biscuit crumble and spread", Price: "140.00", Stock: 25, Category: "sweet"},
	{Name: "Mango Greek yogurt", Description: "Nam dok mai mango cubes", Price: "130.00", Stock: 30, Category: "fruit"},
	{Name: "Honey Granola Greek yogurt", Description: "Wildflower honey with house granola", Price: "110.00", Stock: 50, Category: "sweet"},
	{Name: "Dark Chocolate Greek yogurt", Description: "70% chocolate shavings and cocoa nibs", Price: "135.00", Stock: 15, Category: "sweet"},
	{Name: "Plain Greek yogurt", Description: "Unsweetened, triple strained", Price: "90.00", Stock: 60, Category: "classic"},
}

// DefaultCatalog returns the demo yogurt catalog with sequential numeric IDs.
func DefaultCatalog() []domain.Product {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Product, 0, len(seeds))
	for i, s := range seeds {
		out = append(out, domain.Product{
			ID:          domain.ID(strconv.Itoa(i + 1)),
			Name:        s.Name,
			Description: s.Description,
			Price:       decimal.RequireFromString(s.Price),
			Stock:       s.Stock,
			Category:    s.Category,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}
	return out
}
