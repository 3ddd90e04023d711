package domain

import "time"

// Batch is a discrete quantity of stock for one SKU, either already in the
// warehouse (ETA == nil) or arriving on a known date. Identity is the
// Reference alone; allocations are tracked by value with insertion order
// preserved so deallocation under a quantity change is deterministic.
type Batch struct {
	Reference string
	SKU       string
	ETA       *time.Time

	purchasedQty int
	allocations  map[OrderLine]struct{}
	lineOrder    []OrderLine
}

func NewBatch(reference, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:    reference,
		SKU:          sku,
		ETA:          eta,
		purchasedQty: qty,
		allocations:  make(map[OrderLine]struct{}),
	}
}

// RestoreBatch rebuilds a batch from persisted state, bypassing the
// eligibility checks Allocate applies to live allocations.
func RestoreBatch(reference, sku string, qty int, eta *time.Time, allocations []OrderLine) *Batch {
	b := NewBatch(reference, sku, qty, eta)
	for _, line := range allocations {
		b.allocations[line] = struct{}{}
		b.lineOrder = append(b.lineOrder, line)
	}
	return b
}

func (b *Batch) PurchasedQuantity() int { return b.purchasedQty }

func (b *Batch) AllocatedQuantity() int {
	var total int
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.purchasedQty - b.AllocatedQuantity()
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate adds the line to this batch. Allocating an ineligible or
// already-allocated line is a no-op, not an error: candidate selection is the
// aggregate's job.
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) {
		return
	}
	if _, ok := b.allocations[line]; ok {
		return
	}
	b.allocations[line] = struct{}{}
	b.lineOrder = append(b.lineOrder, line)
}

// Deallocate removes the line if present; removing an absent line is a no-op.
func (b *Batch) Deallocate(line OrderLine) {
	if _, ok := b.allocations[line]; !ok {
		return
	}
	delete(b.allocations, line)
	for i, l := range b.lineOrder {
		if l == line {
			b.lineOrder = append(b.lineOrder[:i], b.lineOrder[i+1:]...)
			break
		}
	}
}

// Allocations returns the allocated lines in insertion order.
func (b *Batch) Allocations() []OrderLine {
	out := make([]OrderLine, len(b.lineOrder))
	copy(out, b.lineOrder)
	return out
}

// earlierThan orders batches for allocation: in-stock (nil ETA) before any
// shipment, then ascending arrival date.
func (b *Batch) earlierThan(other *Batch) bool {
	if b.ETA == nil {
		return other.ETA != nil
	}
	if other.ETA == nil {
		return false
	}
	return b.ETA.Before(*other.ETA)
}
