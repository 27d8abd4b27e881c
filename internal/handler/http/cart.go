package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/service"
	"github.com/utafrali/shopease/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Response types ---

// CartView is a cart with its derived totals and per-item button state.
type CartView struct {
	SessionID string         `json:"session_id"`
	Items     []CartItemView `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  domain.Money   `json:"subtotal"`
	Shipping  domain.Money   `json:"shipping"`
	Total     domain.Money   `json:"total"`
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// CartItemView is one line of a CartView.
type CartItemView struct {
	domain.LineItem
	LineTotal   domain.Money `json:"line_total"`
	CanIncrease bool         `json:"can_increase"`
	CanDecrease bool         `json:"can_decrease"`
}

func newCartView(c *domain.Cart) CartView {
	totals := c.Totals()
	items := make([]CartItemView, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemView{
			LineItem:    item,
			LineTotal:   item.UnitPrice.Times(item.Quantity),
			CanIncrease: c.CanIncrease(item.ProductID),
			CanDecrease: c.CanDecrease(item.ProductID),
		})
	}
	return CartView{
		SessionID: c.SessionID,
		Items:     items,
		ItemCount: c.ItemCount(),
		Subtotal:  totals.Subtotal,
		Shipping:  totals.Shipping,
		Total:     totals.Total,
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartView(cart)})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req service.AddItemInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartView(cart)})
}

// ChangeQuantity handles PATCH /api/v1/cart/items/{productId}
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req service.ChangeQuantityInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.ChangeQuantity(r.Context(), sessionIDFromContext(r.Context()), chi.URLParam(r, "productId"), req.Delta)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartView(cart)})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), sessionIDFromContext(r.Context()), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartView(cart)})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), sessionIDFromContext(r.Context()), service.ClearReasonUser); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
