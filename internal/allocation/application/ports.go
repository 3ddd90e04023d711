package application

import (
	"context"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

// ProductRepository is the persistence port for Product aggregates. Lookups
// return (nil, nil) when no product exists for the key.
type ProductRepository interface {
	Add(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, sku string) (*domain.Product, error)
	GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error)
}

// UnitOfWork is one transaction scope. Handlers load aggregates through
// Products, mutate them, and Commit; Rollback after a successful Commit is a
// no-op. CollectNewEvents drains events recorded on every aggregate touched
// during the scope so the bus can feed them back into its queue.
type UnitOfWork interface {
	Products() ProductRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	CollectNewEvents() []domain.Event
}

// UnitOfWorkFactory yields a fresh unit of work per inbound request or
// message. Concurrent callers must never share one scope.
type UnitOfWorkFactory func() UnitOfWork

// Notifier delivers out-of-stock notices. Fire-and-forget from the domain's
// point of view.
type Notifier interface {
	Send(ctx context.Context, recipient, subject string) error
}

// EventPublisher pushes allocation facts to the outside world (the outbox in
// production, a recording fake in tests).
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}
