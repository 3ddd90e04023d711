package application

import (
	"context"
	"errors"
	"testing"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

func TestDerivedEventFailureDoesNotFailTheCall(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker down")

	f.handle(t, domain.BatchCreated{Ref: "batch1", SKU: "STURDY-BENCH", Qty: 100})
	results, err := f.bus.Handle(context.Background(),
		domain.AllocationRequired{OrderID: "o1", SKU: "STURDY-BENCH", Qty: 10}, f.uow)

	// The allocation itself succeeded; the failed publication of the derived
	// Allocated event is logged, not surfaced.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0] != "batch1" {
		t.Errorf("expected result [batch1], got %v", results)
	}
}

func TestOriginatingErrorStillDrainsDerivedEvents(t *testing.T) {
	f := newFixture()
	f.handle(t, domain.BatchCreated{Ref: "b1", SKU: "FRAGILE-VASE", Qty: 5})

	_, err := f.bus.Handle(context.Background(),
		domain.AllocationRequired{OrderID: "o1", SKU: "FRAGILE-VASE", Qty: 6}, f.uow)

	if err == nil {
		t.Fatal("expected out-of-stock error")
	}
	if len(f.notifier.subjects) != 1 {
		t.Errorf("expected the out-of-stock notification to be delivered, got %v", f.notifier.subjects)
	}
}

func TestQuantityChangeTriggersReallocationThroughTheBus(t *testing.T) {
	f := newFixture()

	f.handle(t,
		domain.BatchCreated{Ref: "batch1", SKU: "VELVET-SOFA", Qty: 30},
		domain.AllocationRequired{OrderID: "order1", SKU: "VELVET-SOFA", Qty: 25},
	)
	f.publisher.events = nil

	// Shrinking below the committed allocation with nowhere to go should
	// notify, not silently drop the line.
	f.handle(t, domain.BatchQuantityChanged{Ref: "batch1", Qty: 10})

	if len(f.notifier.subjects) != 1 {
		t.Errorf("expected 1 out-of-stock notification, got %v", f.notifier.subjects)
	}
}
