package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/event"
	"github.com/utafrali/shopease/internal/repository"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/validator"
)

// MyOrdersPath is where the client lands after a successful checkout.
const MyOrdersPath = "/dashboard/my-orders"

// OrderSubmitter forwards a placed order to a remote order backend.
type OrderSubmitter interface {
	Submit(ctx context.Context, o *domain.Order) error
}

// CheckoutCart is the cart access checkout needs. *CartService implements it.
type CheckoutCart interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID, reason string) error
}

// PlaceOrderInput is the checkout form.
type PlaceOrderInput struct {
	SessionID string
	UserID    string
	Email     string
	Address   domain.ShippingAddress
}

// PlaceOrderResult is a placed order and the view to show next.
type PlaceOrderResult struct {
	Order      *domain.Order `json:"order"`
	RedirectTo string        `json:"redirect_to"`
}

// OrderService implements checkout and order management.
type OrderService struct {
	orders   repository.OrderRepository
	carts    CheckoutCart
	remote   OrderSubmitter
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewOrderService creates a new order service. remote may be nil, in which
// case orders are only recorded in the local store.
func NewOrderService(orders repository.OrderRepository, carts CheckoutCart, remote OrderSubmitter, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		remote:   remote,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// PlaceOrder submits the session's cart as a pending order. The order is
// placed once the remote backend accepts it, or, without a backend, once it
// is stored locally. Only then is the cart cleared. A failure before that
// point leaves the cart as is and the error is retryable.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if input.UserID == "" {
		return nil, apperrors.Unauthorized("sign in to place an order")
	}

	addr := input.Address.Normalize()
	if err := validator.Validate(addr); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperrors.InvalidInput("your cart is empty")
	}

	order := domain.NewOrder(s.newID(), cart, input.UserID, input.Email, addr, s.now())

	if s.remote != nil {
		if err := s.remote.Submit(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "order submission failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperrors.Unavailable("could not place the order, please try again", err)
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if s.remote == nil {
			s.logger.ErrorContext(ctx, "failed to store order",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			return nil, apperrors.Unavailable("could not place the order, please try again", err)
		}
		// The backend owns the order once Submit succeeds. A retry here would
		// place it twice, so the local copy is only logged as missing.
		s.logger.WarnContext(ctx, "order accepted by backend but not stored locally",
			slog.String("order_id", order.ID),
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.carts.Clear(ctx, input.SessionID, ClearReasonOrder); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order",
			slog.String("order_id", order.ID),
			slog.String("session_id", input.SessionID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int64("total", int64(order.Total)),
	)

	return &PlaceOrderResult{Order: order, RedirectTo: MyOrdersPath}, nil
}

// GetOrder returns an order. Customers only see their own orders; a foreign
// order reads as not found.
func (s *OrderService) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !isAdmin && order.UserID != userID {
		return nil, apperrors.NotFound("order", id)
	}
	return order, nil
}

// ListByUser returns a customer's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to status. Setting the current status again
// is a no-op; any other move outside the lifecycle is a conflict.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	target, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", status))
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for status update: %w", err)
	}
	if order.Status == target {
		return order, nil
	}
	if !order.CanTransitionTo(target) {
		return nil, apperrors.Conflict(fmt.Sprintf("order cannot move from %s to %s", order.Status, target))
	}

	from := order.Status
	now := s.now()
	if err := s.orders.UpdateStatus(ctx, id, target, now); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = target
	order.UpdatedAt = now

	if err := s.producer.PublishOrderStatusChanged(ctx, id, from, target); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
	)
	return order, nil
}
