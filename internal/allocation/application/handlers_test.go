package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

type fakeRepository struct {
	products []*domain.Product
	seen     []*domain.Product
}

func (r *fakeRepository) Add(_ context.Context, p *domain.Product) error {
	r.products = append(r.products, p)
	r.remember(p)
	return nil
}

func (r *fakeRepository) Get(_ context.Context, sku string) (*domain.Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			r.remember(p)
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeRepository) GetByBatchRef(_ context.Context, ref string) (*domain.Product, error) {
	for _, p := range r.products {
		for _, b := range p.Batches() {
			if b.Reference == ref {
				r.remember(p)
				return p, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeRepository) remember(p *domain.Product) {
	for _, s := range r.seen {
		if s == p {
			return
		}
	}
	r.seen = append(r.seen, p)
}

type fakeUnitOfWork struct {
	repo      *fakeRepository
	committed bool
	commits   int
}

func newFakeUnitOfWork() *fakeUnitOfWork {
	return &fakeUnitOfWork{repo: &fakeRepository{}}
}

func (u *fakeUnitOfWork) Products() ProductRepository { return u.repo }

func (u *fakeUnitOfWork) Commit(context.Context) error {
	u.committed = true
	u.commits++
	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error { return nil }

func (u *fakeUnitOfWork) CollectNewEvents() []domain.Event {
	var out []domain.Event
	for _, p := range u.repo.seen {
		out = append(out, p.PullEvents()...)
	}
	return out
}

type fakeNotifier struct {
	subjects []string
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, recipient, subject string) error {
	if n.err != nil {
		return n.err
	}
	n.subjects = append(n.subjects, fmt.Sprintf("%s: %s", recipient, subject))
	return nil
}

type fakePublisher struct {
	events []domain.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	bus       *MessageBus
	uow       *fakeUnitOfWork
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	return &fixture{
		bus:       NewMessageBus(log, NewHandlers(log, notifier, publisher)),
		uow:       newFakeUnitOfWork(),
		notifier:  notifier,
		publisher: publisher,
	}
}

func (f *fixture) handle(t *testing.T, events ...domain.Event) []string {
	t.Helper()
	var last []string
	for _, e := range events {
		results, err := f.bus.Handle(context.Background(), e, f.uow)
		if err != nil {
			t.Fatalf("handle %T: %v", e, err)
		}
		last = results
	}
	return last
}

func TestAddBatchForNewProduct(t *testing.T) {
	f := newFixture()

	f.handle(t, domain.BatchCreated{Ref: "b1", SKU: "CRUNCHY-ARMCHAIR", Qty: 100})

	product, _ := f.uow.repo.Get(context.Background(), "CRUNCHY-ARMCHAIR")
	if product == nil {
		t.Fatal("expected product to be created")
	}
	if !f.uow.committed {
		t.Error("expected commit")
	}
}

func TestAddBatchForExistingProduct(t *testing.T) {
	f := newFixture()

	f.handle(t,
		domain.BatchCreated{Ref: "b1", SKU: "GARISH-RUG", Qty: 100},
		domain.BatchCreated{Ref: "b2", SKU: "GARISH-RUG", Qty: 99},
	)

	product, _ := f.uow.repo.Get(context.Background(), "GARISH-RUG")
	var refs []string
	for _, b := range product.Batches() {
		refs = append(refs, b.Reference)
	}
	if len(refs) != 2 || refs[1] != "b2" {
		t.Errorf("expected batches [b1 b2], got %v", refs)
	}
}

func TestAllocateReturnsAllocation(t *testing.T) {
	f := newFixture()

	results := f.handle(t,
		domain.BatchCreated{Ref: "batch1", SKU: "COMPLICATED-LAMP", Qty: 100},
		domain.AllocationRequired{OrderID: "o1", SKU: "COMPLICATED-LAMP", Qty: 10},
	)

	if len(results) == 0 || results[0] != "batch1" {
		t.Errorf("expected first result batch1, got %v", results)
	}
}

func TestAllocateErrorsForInvalidSku(t *testing.T) {
	f := newFixture()
	f.handle(t, domain.BatchCreated{Ref: "b1", SKU: "AREALSKU", Qty: 100})

	_, err := f.bus.Handle(context.Background(),
		domain.AllocationRequired{OrderID: "o1", SKU: "NONEXISTENTSKU", Qty: 10}, f.uow)

	var badSKU domain.InvalidSKUError
	if !errors.As(err, &badSKU) {
		t.Fatalf("expected InvalidSKUError, got %v", err)
	}
	if badSKU.SKU != "NONEXISTENTSKU" {
		t.Errorf("error names sku %s", badSKU.SKU)
	}
}

func TestAllocateCommits(t *testing.T) {
	f := newFixture()

	f.handle(t,
		domain.BatchCreated{Ref: "b1", SKU: "OMINOUS-MIRROR", Qty: 100},
		domain.AllocationRequired{OrderID: "o1", SKU: "OMINOUS-MIRROR", Qty: 10},
	)

	if !f.uow.committed {
		t.Error("expected commit")
	}
}

func TestAllocatePublishesAllocatedEvent(t *testing.T) {
	f := newFixture()

	f.handle(t,
		domain.BatchCreated{Ref: "batch1", SKU: "TASTELESS-LAMP", Qty: 100},
		domain.AllocationRequired{OrderID: "o1", SKU: "TASTELESS-LAMP", Qty: 10},
	)

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.publisher.events))
	}
	allocated, ok := f.publisher.events[0].(domain.Allocated)
	if !ok || allocated.BatchRef != "batch1" || allocated.OrderID != "o1" {
		t.Errorf("unexpected published event %#v", f.publisher.events[0])
	}
}

func TestSendsNotificationOnOutOfStock(t *testing.T) {
	f := newFixture()
	f.handle(t, domain.BatchCreated{Ref: "b1", SKU: "POPULAR-CURTAINS", Qty: 9})

	_, err := f.bus.Handle(context.Background(),
		domain.AllocationRequired{OrderID: "o1", SKU: "POPULAR-CURTAINS", Qty: 10}, f.uow)

	var oos domain.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	want := "stock@made.com: Out of stock for POPULAR-CURTAINS"
	if len(f.notifier.subjects) != 1 || f.notifier.subjects[0] != want {
		t.Errorf("expected notification %q, got %v", want, f.notifier.subjects)
	}
}

func TestChangeBatchQuantityChangesAvailable(t *testing.T) {
	f := newFixture()
	f.handle(t, domain.BatchCreated{Ref: "batch1", SKU: "ADORABLE-SETTEE", Qty: 100})

	f.handle(t, domain.BatchQuantityChanged{Ref: "batch1", Qty: 50})

	product, _ := f.uow.repo.Get(context.Background(), "ADORABLE-SETTEE")
	if got := product.Batches()[0].AvailableQuantity(); got != 50 {
		t.Errorf("expected available quantity 50, got %d", got)
	}
}

func TestChangeBatchQuantityReallocatesIfNecessary(t *testing.T) {
	f := newFixture()
	eta := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	f.handle(t,
		domain.BatchCreated{Ref: "batch1", SKU: "INDIFFERENT-TABLE", Qty: 50},
		domain.BatchCreated{Ref: "batch2", SKU: "INDIFFERENT-TABLE", Qty: 50, ETA: &eta},
		domain.AllocationRequired{OrderID: "order1", SKU: "INDIFFERENT-TABLE", Qty: 20},
		domain.AllocationRequired{OrderID: "order2", SKU: "INDIFFERENT-TABLE", Qty: 20},
	)

	product, _ := f.uow.repo.Get(context.Background(), "INDIFFERENT-TABLE")
	batch1, batch2 := product.Batches()[0], product.Batches()[1]
	if batch1.AvailableQuantity() != 10 || batch2.AvailableQuantity() != 50 {
		t.Fatalf("setup quantities wrong: %d %d", batch1.AvailableQuantity(), batch2.AvailableQuantity())
	}

	f.handle(t, domain.BatchQuantityChanged{Ref: "batch1", Qty: 25})

	if got := batch1.AvailableQuantity(); got != 5 {
		t.Errorf("expected batch1 available 5, got %d", got)
	}
	if got := batch2.AvailableQuantity(); got != 30 {
		t.Errorf("expected batch2 available 30, got %d", got)
	}
}

func TestChangeBatchQuantityUnknownRefErrors(t *testing.T) {
	f := newFixture()

	_, err := f.bus.Handle(context.Background(),
		domain.BatchQuantityChanged{Ref: "missing", Qty: 10}, f.uow)
	if err == nil {
		t.Error("expected error for unknown batch reference")
	}
}
