package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/pkg/database"
	apperrors "github.com/utafrali/shopease/pkg/errors"
)

const (
	insertOrderQuery = `
		INSERT INTO orders (id, user_id, email, status, shipping_address, subtotal, shipping, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderItemQuery = `
		INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// selectOrders loads orders with their items aggregated into one JSON
	// column, avoiding a query per order.
	selectOrders = `
		SELECT o.id, o.user_id, o.email, o.status, o.shipping_address,
			o.subtotal, o.shipping, o.total, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', oi.product_id,
						'name', oi.name,
						'quantity', oi.quantity,
						'unit_price', oi.unit_price
					) ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id`

	getOrderQuery         = selectOrders + ` WHERE o.id = $1 GROUP BY o.id`
	listOrdersByUserQuery = selectOrders + ` WHERE o.user_id = $1 GROUP BY o.id ORDER BY o.created_at DESC, o.id DESC`
	listAllOrdersQuery    = selectOrders + ` GROUP BY o.id ORDER BY o.created_at DESC, o.id DESC`

	updateOrderStatusQuery = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	orderStatsQuery = `
		SELECT COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0), COUNT(*)
		FROM orders`
)

// OrderRepository implements repository.OrderRepository on PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order store.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "order.create", insertOrderQuery)
	defer func() { end(err) }()

	addr, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, insertOrderQuery, o.ID, o.UserID, o.Email, string(o.Status), addr,
		int64(o.Subtotal), int64(o.Shipping), int64(o.Total), o.CreatedAt, o.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "id", o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		if _, err = tx.Exec(ctx, insertOrderItemQuery, o.ID, i, item.ProductID, item.Name,
			item.Quantity, int64(item.UnitPrice)); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "order.get", getOrderQuery)
	defer func() { end(err) }()

	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "order.list_by_user", listOrdersByUserQuery)
	defer func() { end(err) }()
	return r.list(ctx, listOrdersByUserQuery, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "order.list_all", listAllOrdersQuery)
	defer func() { end(err) }()
	return r.list(ctx, listAllOrdersQuery)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "order.update_status", updateOrderStatusQuery)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, updateOrderStatusQuery, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

func (r *OrderRepository) Stats(ctx context.Context) (_ domain.Money, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "order.stats", orderStatsQuery)
	defer func() { end(err) }()

	var (
		revenue int64
		count   int
	)
	if err = r.pool.QueryRow(ctx, orderStatsQuery).Scan(&revenue, &count); err != nil {
		return 0, 0, fmt.Errorf("order stats: %w", err)
	}
	return domain.Money(revenue), count, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o         domain.Order
		status    string
		addrJSON  []byte
		itemsJSON []byte
		subtotal  int64
		shipping  int64
		total     int64
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Email, &status, &addrJSON,
		&subtotal, &shipping, &total, &o.CreatedAt, &o.UpdatedAt, &itemsJSON); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.Subtotal = domain.Money(subtotal)
	o.Shipping = domain.Money(shipping)
	o.Total = domain.Money(total)

	if err := json.Unmarshal(addrJSON, &o.Address); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &o, nil
}
