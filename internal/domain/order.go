package domain

import (
	"strings"
	"time"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// DefaultCountry fills an empty shipping country.
const DefaultCountry = "United States"

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ParseOrderStatus accepts a status in any case, e.g. "Shipped".
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Order is a submitted cart.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	Status    OrderStatus     `json:"status"`
	Address   ShippingAddress `json:"shipping_address"`
	Items     []OrderItem     `json:"items"`
	Subtotal  Money           `json:"subtotal"`
	Shipping  Money           `json:"shipping"`
	Total     Money           `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderItem is a line item frozen at submission time.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
}

// ShippingAddress is the checkout form.
type ShippingAddress struct {
	Name       string `json:"name" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"`
}

// Normalize trims every field and applies DefaultCountry.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.Name = strings.TrimSpace(a.Name)
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

// NewOrder freezes the cart's items and totals into a pending order.
func NewOrder(id string, cart *Cart, userID, email string, addr ShippingAddress, now time.Time) *Order {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, li := range cart.Items {
		items = append(items, OrderItem{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}

	totals := cart.Totals()
	return &Order{
		ID:        id,
		UserID:    userID,
		Email:     email,
		Status:    OrderStatusPending,
		Address:   addr.Normalize(),
		Items:     items,
		Subtotal:  totals.Subtotal,
		Shipping:  totals.Shipping,
		Total:     totals.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransitionTo reports whether the order may move to target.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, s := range allowedTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// CountsTowardRevenue excludes cancelled orders from store revenue.
func (o *Order) CountsTowardRevenue() bool {
	return o.Status != OrderStatusCancelled
}

// DashboardStats are the admin console's headline numbers.
type DashboardStats struct {
	TotalRevenue   Money `json:"total_revenue"`
	TotalOrders    int   `json:"total_orders"`
	TotalProducts  int   `json:"total_products"`
	TotalCustomers int   `json:"total_customers"`
}
