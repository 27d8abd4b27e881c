package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/pkg/database"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/pagination"
)

const productColumns = `id, name, slug, description, category, image_url, price, stock, created_at, updated_at`

const (
	getProductQuery = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	insertProductQuery = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateProductQuery = `
		UPDATE products
		SET name = $2, slug = $3, description = $4, category = $5, image_url = $6,
			price = $7, stock = $8, updated_at = $9
		WHERE id = $1`

	deleteProductQuery     = `DELETE FROM products WHERE id = $1`
	setStockQuery          = `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`
	productCategoriesQuery = `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`
	countProductsQuery     = `SELECT COUNT(*) FROM products`
)

// ProductRepository implements repository.ProductRepository on PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed catalog.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of products matching filter, oldest first, and the
// total number of matches.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) (_ []domain.Product, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(category) = LOWER($%d)", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, int64(*filter.MinPrice))
		argIndex++
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, int64(*filter.MaxPrice))
		argIndex++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d`,
		productColumns, where, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset)

	ctx, end := database.TraceQuery(ctx, "product.list", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	total := 0
	for rows.Next() {
		var (
			p          domain.Product
			price      int64
			totalCount int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category, &p.ImageURL,
			&price, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		p.Price = domain.Money(price)
		total = totalCount
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	// An out-of-range page has no rows to carry the window count.
	if len(products) == 0 && page.Offset > 0 {
		if total, err = r.Count(ctx); err != nil {
			return nil, 0, err
		}
		return products, total, nil
	}
	return products, total, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "product.get", getProductQuery)
	defer func() { end(err) }()

	var (
		p     domain.Product
		price int64
	)
	err = r.pool.QueryRow(ctx, getProductQuery, id).Scan(&p.ID, &p.Name, &p.Slug, &p.Description,
		&p.Category, &p.ImageURL, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p.Price = domain.Money(price)
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "product.create", insertProductQuery)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertProductQuery, p.ID, p.Name, p.Slug, p.Description, p.Category,
		p.ImageURL, int64(p.Price), p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "product.update", updateProductQuery)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, updateProductQuery, p.ID, p.Name, p.Slug, p.Description, p.Category,
		p.ImageURL, int64(p.Price), p.Stock, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "product.delete", deleteProductQuery)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, deleteProductQuery, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "product.set_stock", setStockQuery)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, setStockQuery, id, stock, at)
	if err != nil {
		return fmt.Errorf("set product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepository) Categories(ctx context.Context) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, "product.categories", productCategoriesQuery)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, productCategoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ProductRepository) Count(ctx context.Context) (n int, err error) {
	ctx, end := database.TraceQuery(ctx, "product.count", countProductsQuery)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, countProductsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
