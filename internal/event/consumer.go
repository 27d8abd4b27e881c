package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/shopease/internal/domain"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	pkgkafka "github.com/utafrali/shopease/pkg/kafka"
)

// StockApplier applies an inventory stock level to the catalog.
type StockApplier interface {
	ApplyStockUpdate(ctx context.Context, update domain.StockUpdate) error
}

// StockUpdatedHandler decodes inventory.stock_updated events. Updates for
// products the catalog does not carry are dropped rather than retried.
func StockUpdatedHandler(catalog StockApplier, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, evt *pkgkafka.Event) error {
		var update domain.StockUpdate
		if err := evt.UnmarshalData(&update); err != nil {
			return err
		}
		if update.ProductID == "" {
			update.ProductID = evt.AggregateID
		}
		if update.ProductID == "" || update.Stock < 0 {
			logger.WarnContext(ctx, "ignoring invalid stock update",
				slog.String("event_id", evt.EventID),
				slog.Int("stock", update.Stock),
			)
			return nil
		}

		if err := catalog.ApplyStockUpdate(ctx, update); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				logger.WarnContext(ctx, "stock update for unknown product",
					slog.String("product_id", update.ProductID),
				)
				return nil
			}
			return fmt.Errorf("apply stock update: %w", err)
		}
		return nil
	}
}

// StockConsumerConfig wires the stock consumer.
type StockConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Idempotency pkgkafka.IdempotencyStore
	DeadLetter  *pkgkafka.Producer
}

// NewStockConsumer builds the inventory.stock_updated consumer with
// duplicate suppression and dead-lettering.
func NewStockConsumer(cfg StockConsumerConfig, catalog StockApplier, logger *slog.Logger) *pkgkafka.Consumer {
	handler := StockUpdatedHandler(catalog, logger)
	if cfg.Idempotency != nil {
		handler = pkgkafka.IdempotentHandler(cfg.Idempotency, handler, logger)
	}

	c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    TopicStockUpdated,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	}, handler, logger)
	if cfg.DeadLetter != nil {
		c.WithDeadLetter(cfg.DeadLetter)
	}
	return c
}
