// Package client holds HTTP clients for peer services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/pkg/httpclient"
	"github.com/utafrali/shopease/pkg/logger"
)

const orderService = "order"

// HTTPDoer executes HTTP requests. httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type addressPayload struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	Email           string             `json:"email,omitempty"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	Items           []orderItemPayload `json:"items"`
	Subtotal        int64              `json:"subtotal"`
	Shipping        int64              `json:"shipping"`
	Total           int64              `json:"total"`
	Status          string             `json:"status"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// OrderClient submits placed orders to a remote order backend.
type OrderClient struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewOrderClient creates a client posting to baseURL + "/api/v1/orders".
func NewOrderClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *OrderClient {
	return &OrderClient{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Submit sends o to the order backend. The order id doubles as the
// idempotency key so transport retries cannot create it twice. Transport
// failures, 5xx responses and an open breaker come back as retryable
// Unavailable errors.
func (c *OrderClient) Submit(ctx context.Context, o *domain.Order) error {
	body, err := json.Marshal(toPayload(o))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", o.ID)
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.AsUnavailable(fmt.Errorf("call order service: %w", err), orderService)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, orderService)
	}
	_ = resp.Body.Close()

	c.logger.InfoContext(ctx, "order submitted to order service",
		slog.String("order_id", o.ID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func toPayload(o *domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemPayload{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     int64(it.UnitPrice),
		})
	}

	return orderPayload{
		ID:     o.ID,
		UserID: o.UserID,
		Email:  o.Email,
		ShippingAddress: addressPayload{
			Name:       o.Address.Name,
			Address:    o.Address.Address,
			City:       o.Address.City,
			PostalCode: o.Address.PostalCode,
			Country:    o.Address.Country,
		},
		Items:     items,
		Subtotal:  int64(o.Subtotal),
		Shipping:  int64(o.Shipping),
		Total:     int64(o.Total),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}
