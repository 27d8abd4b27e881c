package domain

import "time"

// Product is a catalog entry.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	Price       Money     `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InStock reports whether at least one unit can be added to a cart.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Ref returns the cart-facing view of the product.
func (p *Product) Ref() ProductRef {
	return ProductRef{
		ID:             p.ID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		UnitPrice:      p.Price,
		AvailableStock: p.Stock,
	}
}

// ProductFilter narrows a catalog listing. Zero fields do not filter.
type ProductFilter struct {
	Search   string
	Category string
	MinPrice *Money
	MaxPrice *Money
}

// StockUpdate is the inventory service's notification of a new stock level.
type StockUpdate struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}
