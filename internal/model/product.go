package model

import "github.com/shopspring/decimal"

// Product is the part of a catalogue entry the cart needs when an item is added.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
}

// CartLine is one product's presence in the cart.
// UnitPrice is snapshotted when the product is first added.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

// LineTotal returns UnitPrice × Quantity without rounding.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals holds the derived monetary figures of a cart or order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}
