// Package memory holds in-process repositories used when no external store
// is configured, and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/shopease/internal/domain"
	apperrors "github.com/utafrali/shopease/pkg/errors"
)

// CartRepository keeps carts in a map keyed by session id. A cart past its
// ExpiresAt reads as missing and is dropped on the next save.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
	now   func() time.Time
}

// NewCartRepository creates an empty cart store.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.Cart), now: time.Now}
}

func (r *CartRepository) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[sessionID]
	if !ok || expired(c, r.now()) {
		return nil, apperrors.NotFound("cart", sessionID)
	}
	return cloneCart(c), nil
}

func (r *CartRepository) SaveIfVersion(_ context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, c := range r.carts {
		if expired(c, now) {
			delete(r.carts, id)
		}
	}

	current := 0
	if c, ok := r.carts[cart.SessionID]; ok {
		current = c.Version
	}
	if current != expectedVersion {
		return false, nil
	}

	cart.Version = expectedVersion + 1
	r.carts[cart.SessionID] = *cloneCart(*cart)
	return true, nil
}

func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.carts, sessionID)
	r.mu.Unlock()
	return nil
}

func expired(c domain.Cart, now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func cloneCart(c domain.Cart) *domain.Cart {
	c.Items = append([]domain.LineItem{}, c.Items...)
	return &c
}
