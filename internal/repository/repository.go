package repository

import (
	"context"
	"time"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/pkg/pagination"
)

// CartRepository persists one cart per storefront session.
type CartRepository interface {
	// Get returns the session's cart or an ErrNotFound error.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// SaveIfVersion stores cart only when the stored version equals
	// expectedVersion (0 for a cart that does not exist yet). On success
	// cart.Version is expectedVersion+1.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes the session's cart. Deleting a missing cart is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// ProductRepository is the catalog store.
type ProductRepository interface {
	List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	SetStock(ctx context.Context, id string, stock int, at time.Time) error
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// OrderRepository stores submitted orders.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	// ListByUser and ListAll return newest orders first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error
	// Stats returns revenue over non-cancelled orders and the order count.
	Stats(ctx context.Context) (domain.Money, int, error)
}

// UserRepository stores accounts. Emails are unique, compared lower-cased.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	CountByRole(ctx context.Context, role string) (int, error)
}
