package domain

import "time"

// Event is an immutable fact raised by an aggregate and consumed once by the
// message bus. Aggregate state, not event history, stays authoritative.
type Event interface {
	isEvent()
}

type BatchCreated struct {
	Ref string
	SKU string
	Qty int
	ETA *time.Time
}

type AllocationRequired struct {
	OrderID string
	SKU     string
	Qty     int
}

type BatchQuantityChanged struct {
	Ref string
	Qty int
}

type Allocated struct {
	OrderID  string
	SKU      string
	Qty      int
	BatchRef string
}

type OutOfStock struct {
	SKU string
}

func (BatchCreated) isEvent()         {}
func (AllocationRequired) isEvent()   {}
func (BatchQuantityChanged) isEvent() {}
func (Allocated) isEvent()            {}
func (OutOfStock) isEvent()           {}
