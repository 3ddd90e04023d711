package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

// MessageBus dispatches events to their handlers inside one unit-of-work
// scope per call, breadth-first: events recorded by touched aggregates are
// drained after every handler and appended to the back of the queue.
type MessageBus struct {
	log      *slog.Logger
	handlers *Handlers
}

func NewMessageBus(log *slog.Logger, handlers *Handlers) *MessageBus {
	return &MessageBus{log: log, handlers: handlers}
}

// Handle processes the event and everything it triggers, returning handler
// results in invocation order. For an AllocationRequired event the first
// result is the chosen batch reference.
//
// A handler failure for the originating event is returned to the caller, but
// only after the rest of the queue has drained: a failed allocation still
// records an OutOfStock event and its notification must go out. Failures on
// derived events are logged and must not suppress delivery of their siblings.
func (mb *MessageBus) Handle(ctx context.Context, event domain.Event, uow UnitOfWork) ([]string, error) {
	queue := []domain.Event{event}
	var results []string
	var topErr error

	for i := 0; len(queue) > 0; i++ {
		ev := queue[0]
		queue = queue[1:]

		result, hasResult, err := mb.dispatch(ctx, ev, uow)
		if err != nil {
			if i == 0 {
				topErr = err
			} else {
				mb.log.Error("event handling failed", "event", fmt.Sprintf("%T", ev), "err", err)
			}
		}
		if hasResult {
			results = append(results, result)
		}
		queue = append(queue, uow.CollectNewEvents()...)
	}
	return results, topErr
}

// dispatch is the static event-type to handler mapping.
func (mb *MessageBus) dispatch(ctx context.Context, ev domain.Event, uow UnitOfWork) (string, bool, error) {
	switch e := ev.(type) {
	case domain.BatchCreated:
		return "", false, mb.handlers.AddBatch(ctx, e, uow)
	case domain.AllocationRequired:
		batchref, err := mb.handlers.Allocate(ctx, e, uow)
		return batchref, err == nil, err
	case domain.BatchQuantityChanged:
		return "", false, mb.handlers.ChangeBatchQuantity(ctx, e, uow)
	case domain.Allocated:
		return "", false, mb.handlers.PublishAllocated(ctx, e, uow)
	case domain.OutOfStock:
		return "", false, mb.handlers.SendOutOfStockNotification(ctx, e, uow)
	default:
		return "", false, fmt.Errorf("no handler for event type %T", ev)
	}
}
