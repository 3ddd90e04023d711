package domain

// OrderLine is a value object: two lines with the same fields are
// interchangeable, so it is comparable and usable as a map key.
type OrderLine struct {
	OrderID string
	SKU     string
	Qty     int
}

func NewOrderLine(orderID, sku string, qty int) OrderLine {
	return OrderLine{OrderID: orderID, SKU: sku, Qty: qty}
}
