package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/shopease/internal/domain"
	pkgkafka "github.com/utafrali/shopease/pkg/kafka"
)

// Topics.
const (
	TopicCartUpdated        = "ecommerce.cart.updated"
	TopicCartCleared        = "ecommerce.cart.cleared"
	TopicOrderPlaced        = "ecommerce.order.placed"
	TopicOrderStatusChanged = "ecommerce.order.status_changed"
	TopicStockUpdated       = "ecommerce.inventory.stock_updated"
)

// Aggregate types and the event source name.
const (
	AggregateCart    = "cart"
	AggregateOrder   = "order"
	AggregateProduct = "product"
	Source           = "storefront"
)

// Publisher sends an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartUpdatedData is the cart.updated payload.
type CartUpdatedData struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id,omitempty"`
	Items     []domain.LineItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  int64             `json:"subtotal"`
	Version   int               `json:"version"`
}

// CartClearedData is the cart.cleared payload.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// OrderPlacedData is the order.placed payload.
type OrderPlacedData struct {
	OrderID  string             `json:"order_id"`
	UserID   string             `json:"user_id"`
	Items    []domain.OrderItem `json:"items"`
	Subtotal int64              `json:"subtotal"`
	Shipping int64              `json:"shipping"`
	Total    int64              `json:"total"`
	Country  string             `json:"country"`
}

// OrderStatusChangedData is the order.status_changed payload.
type OrderStatusChangedData struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Producer publishes storefront domain events. A nil Publisher turns every
// publish into a no-op, which is how the app runs without Kafka.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, cart.SessionID, AggregateCart, CartUpdatedData{
		SessionID: cart.SessionID,
		UserID:    cart.UserID,
		Items:     cart.Items,
		ItemCount: cart.ItemCount(),
		Subtotal:  int64(cart.Totals().Subtotal),
		Version:   cart.Version,
	})
}

func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateCart, CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

func (p *Producer) PublishOrderPlaced(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, o.ID, AggregateOrder, OrderPlacedData{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    o.Items,
		Subtotal: int64(o.Subtotal),
		Shipping: int64(o.Shipping),
		Total:    int64(o.Total),
		Country:  o.Address.Country,
	})
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	return p.publish(ctx, TopicOrderStatusChanged, orderID, AggregateOrder, OrderStatusChangedData{
		OrderID: orderID,
		From:    string(from),
		To:      string(to),
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.publisher == nil {
		return nil
	}

	evt, err := pkgkafka.NewEventFromContext(ctx, topicEventType(topic), aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// topicEventType strips the "ecommerce." prefix: "ecommerce.cart.updated"
// becomes "cart.updated".
func topicEventType(topic string) string {
	const prefix = pkgkafka.TopicPrefix + "."
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):]
	}
	return topic
}
