package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/repository"
)

// DashboardService computes the admin console's headline numbers.
type DashboardService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(products repository.ProductRepository, orders repository.OrderRepository, users repository.UserRepository) *DashboardService {
	return &DashboardService{products: products, orders: orders, users: users}
}

// Stats gathers the counts concurrently. Revenue excludes cancelled orders.
func (s *DashboardService) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.products.Count(gctx)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		stats.TotalProducts = n
		return nil
	})
	g.Go(func() error {
		revenue, n, err := s.orders.Stats(gctx)
		if err != nil {
			return fmt.Errorf("order stats: %w", err)
		}
		stats.TotalRevenue = revenue
		stats.TotalOrders = n
		return nil
	})
	g.Go(func() error {
		n, err := s.users.CountByRole(gctx, domain.RoleCustomer)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		stats.TotalCustomers = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
