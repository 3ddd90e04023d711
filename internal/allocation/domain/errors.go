package domain

import "fmt"

// OutOfStockError means no eligible batch could satisfy a requested
// allocation. Recoverable: retry after restock.
type OutOfStockError struct {
	SKU string
}

func (e OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock for sku %s", e.SKU)
}

// InvalidSKUError means an allocation was requested for a SKU with no known
// product. Caller error, never retried automatically.
type InvalidSKUError struct {
	SKU string
}

func (e InvalidSKUError) Error() string {
	return fmt.Sprintf("invalid sku %s", e.SKU)
}
