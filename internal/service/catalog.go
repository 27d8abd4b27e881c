package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/repository"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/pagination"
	"github.com/utafrali/shopease/pkg/slug"
	"github.com/utafrali/shopease/pkg/validator"
)

const placeholderImage = "https://placehold.co/300x300/e2e8f0/64748b?text=Product"

// ProductInput holds the admin form fields for creating or updating a product.
type ProductInput struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,notblank,max=100"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Price       int64  `json:"price" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
}

// CatalogService implements the product read model and admin product management.
type CatalogService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListProducts returns one page of products matching filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter, page pagination.Params) (pagination.Result[domain.Product], error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return pagination.Result[domain.Product]{}, apperrors.InvalidInput("min price must not exceed max price")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	products, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return pagination.NewResult(products, total, page), nil
}

// GetProduct retrieves a product by its ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// Categories lists the distinct product categories.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Count returns the number of catalog products.
func (s *CatalogService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CreateProduct validates input and adds a new product.
func (s *CatalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	applyInput(product, input, now)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// UpdateProduct replaces the editable fields of an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input ProductInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}
	applyInput(product, input, s.now())

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.Int("stock", product.Stock),
	)
	return product, nil
}

// DeleteProduct removes a product from the catalog.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// ApplyStockUpdate sets a product's stock from an inventory notification.
func (s *CatalogService) ApplyStockUpdate(ctx context.Context, update domain.StockUpdate) error {
	if update.Stock < 0 {
		return apperrors.InvalidInput("stock must not be negative")
	}
	if err := s.repo.SetStock(ctx, update.ProductID, update.Stock, s.now()); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	s.logger.InfoContext(ctx, "stock updated",
		slog.String("product_id", update.ProductID),
		slog.Int("stock", update.Stock),
	)
	return nil
}

// EnsureSeed loads the starter catalog into an empty store.
func (s *CatalogService) EnsureSeed(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if n > 0 {
		return nil
	}

	now := s.now()
	for i, p := range SeedProducts() {
		p.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		p.UpdatedAt = p.CreatedAt
		if err := s.repo.Create(ctx, &p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	s.logger.InfoContext(ctx, "catalog seeded", slog.Int("products", len(SeedProducts())))
	return nil
}

// SeedProducts is the storefront's starter catalog.
func SeedProducts() []domain.Product {
	seed := []struct {
		id, name, category string
		price              string
		stock              int
	}{
		{"1", "Vintage Leather Wallet", "Accessories", "49.99", 10},
		{"2", "Wireless Bluetooth Headphones", "Electronics", "199.99", 5},
		{"3", "Minimalist Wrist Watch", "Watches", "120.00", 0},
		{"4", "Cotton Blend T-Shirt", "Clothing", "25.00", 50},
		{"5", "Insulated Coffee Mug", "Home Goods", "30.00", 15},
		{"6", "Running Shoes", "Sports", "89.99", 8},
	}

	products := make([]domain.Product, 0, len(seed))
	for _, p := range seed {
		products = append(products, domain.Product{
			ID:       p.id,
			Name:     p.name,
			Slug:     slug.Generate(p.name),
			Category: p.category,
			ImageURL: placeholderImage,
			Price:    domain.MustParseMoney(p.price),
			Stock:    p.stock,
		})
	}
	return products
}

func applyInput(p *domain.Product, input ProductInput, now time.Time) {
	p.Name = strings.TrimSpace(input.Name)
	p.Slug = slug.Generate(p.Name)
	p.Description = strings.TrimSpace(input.Description)
	p.Category = strings.TrimSpace(input.Category)
	p.ImageURL = input.ImageURL
	if p.ImageURL == "" {
		p.ImageURL = placeholderImage
	}
	p.Price = domain.Money(input.Price)
	p.Stock = input.Stock
	p.UpdatedAt = now
}
