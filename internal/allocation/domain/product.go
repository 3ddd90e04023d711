package domain

import (
	"fmt"
	"sort"
)

// Product is the aggregate root for one SKU: the consistency boundary across
// which "never oversell" is enforced. All batch mutation goes through the
// product; VersionNumber is the optimistic-concurrency token checked by the
// persistence layer.
type Product struct {
	SKU           string
	VersionNumber int

	batches []*Batch
	events  []Event
}

func NewProduct(sku string, batches ...*Batch) *Product {
	return &Product{SKU: sku, batches: batches}
}

func (p *Product) Batches() []*Batch { return p.batches }

func (p *Product) AddBatch(b *Batch) {
	p.batches = append(p.batches, b)
}

// Allocate picks the best eligible batch for the line: in-stock batches
// before shipments, then earliest ETA. Returns the chosen batch reference, or
// an OutOfStockError (also recorded as an event) when nothing fits.
func (p *Product) Allocate(line OrderLine) (string, error) {
	candidates := make([]*Batch, 0, len(p.batches))
	for _, b := range p.batches {
		if b.CanAllocate(line) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		p.events = append(p.events, OutOfStock{SKU: p.SKU})
		return "", OutOfStockError{SKU: p.SKU}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].earlierThan(candidates[j])
	})
	best := candidates[0]
	best.Allocate(line)
	p.VersionNumber++
	p.events = append(p.events, Allocated{
		OrderID:  line.OrderID,
		SKU:      line.SKU,
		Qty:      line.Qty,
		BatchRef: best.Reference,
	})
	return best.Reference, nil
}

// ChangeBatchQuantity resets a batch's purchased quantity and, while the
// batch is oversubscribed, deallocates lines in insertion order and retries
// them against the whole aggregate. Lines with no alternative batch stay
// unallocated and an OutOfStock event is recorded for each.
//
// Panics if the reference is not part of this aggregate: callers must route
// via the by-batchref lookup first, so a miss is a routing bug.
func (p *Product) ChangeBatchQuantity(ref string, qty int) {
	batch := p.batchByRef(ref)
	if batch == nil {
		panic(fmt.Sprintf("batch %s not in product %s", ref, p.SKU))
	}
	batch.purchasedQty = qty
	for batch.AvailableQuantity() < 0 && len(batch.lineOrder) > 0 {
		line := batch.lineOrder[0]
		batch.Deallocate(line)
		// Allocate may put the line straight back if this batch is still
		// the best fit and now has room.
		_, _ = p.Allocate(line)
	}
}

func (p *Product) batchByRef(ref string) *Batch {
	for _, b := range p.batches {
		if b.Reference == ref {
			return b
		}
	}
	return nil
}

// PullEvents drains and returns the events recorded since the last drain.
func (p *Product) PullEvents() []Event {
	out := p.events
	p.events = nil
	return out
}
