package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

const outOfStockRecipient = "stock@made.com"

// Handlers holds one use case per event type. Every state-changing handler is
// a commit scope: rollback is deferred and becomes a no-op once Commit
// succeeds, mirroring the BeginTx/defer-Rollback/Commit shape used by the
// persistence layer.
type Handlers struct {
	log       *slog.Logger
	notifier  Notifier
	publisher EventPublisher
}

func NewHandlers(log *slog.Logger, notifier Notifier, publisher EventPublisher) *Handlers {
	return &Handlers{log: log, notifier: notifier, publisher: publisher}
}

func (h *Handlers) AddBatch(ctx context.Context, e domain.BatchCreated, uow UnitOfWork) error {
	defer func() { _ = uow.Rollback(ctx) }()

	product, err := uow.Products().Get(ctx, e.SKU)
	if err != nil {
		return err
	}
	if product == nil {
		product = domain.NewProduct(e.SKU)
		if err := uow.Products().Add(ctx, product); err != nil {
			return err
		}
	}
	product.AddBatch(domain.NewBatch(e.Ref, e.SKU, e.Qty, e.ETA))
	return uow.Commit(ctx)
}

func (h *Handlers) Allocate(ctx context.Context, e domain.AllocationRequired, uow UnitOfWork) (string, error) {
	defer func() { _ = uow.Rollback(ctx) }()

	line := domain.NewOrderLine(e.OrderID, e.SKU, e.Qty)
	product, err := uow.Products().Get(ctx, e.SKU)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", domain.InvalidSKUError{SKU: e.SKU}
	}
	batchref, err := product.Allocate(line)
	if err != nil {
		// The OutOfStock event stays on the aggregate so the bus can still
		// route it to the notification handler after the rollback.
		h.log.Warn("allocation failed", "order_id", e.OrderID, "sku", e.SKU, "err", err)
		return "", err
	}
	if err := uow.Commit(ctx); err != nil {
		return "", err
	}
	return batchref, nil
}

func (h *Handlers) ChangeBatchQuantity(ctx context.Context, e domain.BatchQuantityChanged, uow UnitOfWork) error {
	defer func() { _ = uow.Rollback(ctx) }()

	product, err := uow.Products().GetByBatchRef(ctx, e.Ref)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("unknown batch reference %s", e.Ref)
	}
	product.ChangeBatchQuantity(e.Ref, e.Qty)
	return uow.Commit(ctx)
}

func (h *Handlers) PublishAllocated(ctx context.Context, e domain.Allocated, _ UnitOfWork) error {
	return h.publisher.Publish(ctx, e)
}

func (h *Handlers) SendOutOfStockNotification(ctx context.Context, e domain.OutOfStock, _ UnitOfWork) error {
	return h.notifier.Send(ctx, outOfStockRecipient, fmt.Sprintf("Out of stock for %s", e.SKU))
}
