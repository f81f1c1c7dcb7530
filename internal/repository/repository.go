package repository

import (
	"context"

	"storefront/internal/model"
)

// CartRepository persists snapshots of one cart.
type CartRepository interface {
	// EnsureSchema creates the snapshot table if it does not exist.
	EnsureSchema(ctx context.Context) error

	// Save replaces the stored snapshot with lines, keeping their order.
	Save(ctx context.Context, lines []model.CartLine) error

	// Load returns the stored snapshot in insertion order.
	// A cart that was never saved yields no lines and no error.
	Load(ctx context.Context) ([]model.CartLine, error)
}
