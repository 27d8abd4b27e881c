package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/event"
	"github.com/utafrali/shopease/internal/repository"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/middleware"
)

// Reasons recorded on cart.cleared events.
const (
	ClearReasonUser  = "user"
	ClearReasonOrder = "order_placed"
)

// AddItemInput holds the parameters for adding a product to the cart.
// A quantity below 1 adds a single unit.
type AddItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// ChangeQuantityInput moves an item's quantity by Delta units.
type ChangeQuantityInput struct {
	Delta int `json:"delta" validate:"required"`
}

// ProductReader is the catalog read a cart mutation is based on.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// CartService implements the cart ledger over a session store.
type CartService struct {
	repo     repository.CartRepository
	catalog  ProductReader
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog ProductReader, producer *event.Producer, logger *slog.Logger, cartTTL time.Duration) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the session's cart, or an empty cart if it has none.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	return s.getOrCreateCart(ctx, sessionID)
}

// AddItem adds a product using its current catalog price and stock.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*domain.Cart, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.AddItem(product.Ref(), input.Quantity)
	})
	if err != nil {
		return nil, err
	}

	item, _ := cart.Item(input.ProductID)
	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", input.ProductID),
		slog.Int("quantity", item.Quantity),
	)
	return cart, nil
}

// ChangeQuantity moves an item's quantity by delta within [1, stock].
func (s *CartService) ChangeQuantity(ctx context.Context, sessionID, productID string, delta int) (*domain.Cart, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.ChangeQuantity(productID, delta)
	})
	if err != nil {
		return nil, err
	}

	item, _ := cart.Item(productID)
	s.logger.InfoContext(ctx, "cart item quantity changed",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.Int("quantity", item.Quantity),
	)
	return cart, nil
}

// RemoveItem deletes a product's line. Removing an absent product succeeds.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
	)
	return cart, nil
}

// Clear empties the session's cart.
func (s *CartService) Clear(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session id is required")
	}

	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get cart for clear: %w", err)
	}

	expectedVersion := cart.Version
	cart.Clear()
	s.touch(ctx, cart)

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartCleared(ctx, sessionID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
	return nil
}

// mutate applies fn to the session's cart and saves it only if nobody else
// saved the cart in between.
func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	cart, err := s.getOrCreateCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version
	if err := fn(cart); err != nil {
		return nil, err
	}
	s.touch(ctx, cart)

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return cart, nil
}

func (s *CartService) touch(ctx context.Context, cart *domain.Cart) {
	now := s.now()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL)
	if userID := middleware.UserIDFromContext(ctx); userID != "" {
		cart.UserID = userID
	}
}

func (s *CartService) getOrCreateCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(sessionID, s.now()), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}
