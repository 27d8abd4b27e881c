package domain

import (
	"math"
	"time"

	apperrors "github.com/utafrali/shopease/pkg/errors"
)

const (
	// ShippingThreshold is the subtotal a cart must exceed for free shipping.
	ShippingThreshold Money = 5000
	// FlatShipping is charged when the subtotal does not exceed the threshold.
	FlatShipping Money = 500
)

// Cart is one session's ledger of line items.
type Cart struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id,omitempty"`
	Items     []LineItem `json:"items"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// LineItem is one product's entry in a cart. AvailableStock is the catalog
// stock seen at the last mutation of this item.
type LineItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url,omitempty"`
	UnitPrice      Money  `json:"unit_price"`
	Quantity       int    `json:"quantity"`
	AvailableStock int    `json:"available_stock"`
}

// ProductRef is the catalog read a cart mutation is based on.
type ProductRef struct {
	ID             string
	Name           string
	ImageURL       string
	UnitPrice      Money
	AvailableStock int
}

// Totals are the amounts derived from a cart's items.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// NewCart returns an empty cart for a session.
func NewCart(sessionID string, now time.Time) *Cart {
	return &Cart{
		SessionID: sessionID,
		Items:     []LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem adds quantity units of ref. An existing line takes the fresh price
// and stock from ref before its quantity is raised. Quantities below 1 count
// as 1 and the result never exceeds the available stock.
func (c *Cart) AddItem(ref ProductRef, quantity int) error {
	if ref.AvailableStock <= 0 {
		return apperrors.StockExhausted(ref.ID)
	}
	if quantity < 1 {
		quantity = 1
	}

	if i := c.indexOf(ref.ID); i >= 0 {
		item := &c.Items[i]
		item.Name = ref.Name
		item.ImageURL = ref.ImageURL
		item.UnitPrice = ref.UnitPrice
		item.AvailableStock = ref.AvailableStock
		item.Quantity = shift(item.Quantity, quantity, 1, ref.AvailableStock)
		return nil
	}

	c.Items = append(c.Items, LineItem{
		ProductID:      ref.ID,
		Name:           ref.Name,
		ImageURL:       ref.ImageURL,
		UnitPrice:      ref.UnitPrice,
		Quantity:       clamp(quantity, 1, ref.AvailableStock),
		AvailableStock: ref.AvailableStock,
	})
	return nil
}

// ChangeQuantity moves an item's quantity by delta within [1, stock]. It never
// removes the item. With no stock left, increases fail and decreases stop at 1.
func (c *Cart) ChangeQuantity(productID string, delta int) error {
	i := c.indexOf(productID)
	if i < 0 {
		return apperrors.NotFound("cart item", productID)
	}

	item := &c.Items[i]
	if item.AvailableStock <= 0 {
		if delta > 0 {
			return apperrors.StockExhausted(productID)
		}
		item.Quantity = max(item.Quantity+delta, 1)
		return nil
	}

	item.Quantity = shift(item.Quantity, delta, 1, item.AvailableStock)
	return nil
}

// RemoveItem deletes the line for productID. Absent ids are ignored.
func (c *Cart) RemoveItem(productID string) {
	if i := c.indexOf(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

// Item returns the line for productID.
func (c *Cart) Item(productID string) (LineItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// CanIncrease reports whether the "+" action is enabled for productID.
func (c *Cart) CanIncrease(productID string) bool {
	item, ok := c.Item(productID)
	return ok && item.Quantity < item.AvailableStock
}

// CanDecrease reports whether the "-" action is enabled for productID.
func (c *Cart) CanDecrease(productID string) bool {
	item, ok := c.Item(productID)
	return ok && item.Quantity > 1
}

// ItemCount returns the number of units in the cart.
func (c *Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Totals derives subtotal, shipping and total from the current items.
func (c *Cart) Totals() Totals {
	return ComputeTotals(c.Items)
}

// ComputeTotals is the pure totals function. Shipping is free only when the
// subtotal is strictly above ShippingThreshold.
func ComputeTotals(items []LineItem) Totals {
	var subtotal Money
	for _, item := range items {
		subtotal += item.UnitPrice.Times(item.Quantity)
	}

	shipping := FlatShipping
	if subtotal > ShippingThreshold {
		shipping = 0
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// shift returns clamp(v+delta, lo, hi) for v >= 0 without overflowing int.
func shift(v, delta, lo, hi int) int {
	if delta > 0 && v > math.MaxInt-delta {
		return hi
	}
	return clamp(v+delta, lo, hi)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
