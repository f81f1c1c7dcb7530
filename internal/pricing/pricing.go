// Package pricing derives cart totals using fixed-point decimal arithmetic.
package pricing

import (
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// Rules holds the constants the totals are derived from.
type Rules struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// DefaultRules returns 8% tax, free shipping from 100.00 and a 15.00 flat fee.
func DefaultRules() Rules {
	return Rules{
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.RequireFromString("100.00"),
		FlatShippingFee:       decimal.RequireFromString("15.00"),
	}
}

// NewRules builds Rules from plain numbers, as read from configuration.
func NewRules(taxRate, freeShippingThreshold, flatShippingFee float64) Rules {
	return Rules{
		TaxRate:               decimal.NewFromFloat(taxRate),
		FreeShippingThreshold: decimal.NewFromFloat(freeShippingThreshold),
		FlatShippingFee:       decimal.NewFromFloat(flatShippingFee),
	}
}

// ComputeTotals derives subtotal, tax, shipping and total from lines.
//
// Subtotal and tax are each rounded half-up to cents from the unrounded sum,
// so tax is never re-derived from an already rounded subtotal. Total is the
// exact sum of the three rounded parts. An empty cart yields all zeros.
func ComputeTotals(lines []model.CartLine, rules Rules) model.Totals {
	if len(lines) == 0 {
		return model.Totals{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	raw := decimal.Zero
	for _, line := range lines {
		raw = raw.Add(line.LineTotal())
	}

	subtotal := raw.Round(2)
	tax := raw.Mul(rules.TaxRate).Round(2)
	shipping := Shipping(subtotal, rules)

	return model.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// Shipping returns the shipping fee for a rounded subtotal.
// A subtotal at or above the threshold ships free.
func Shipping(subtotal decimal.Decimal, rules Rules) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(rules.FreeShippingThreshold) {
		return decimal.Zero
	}
	return rules.FlatShippingFee.Round(2)
}
