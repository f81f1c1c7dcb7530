// Package cart holds the process-wide shopping cart.
package cart

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/pricing"

	"github.com/rs/zerolog"
)

// Persister stores and restores the cart between process runs.
type Persister interface {
	// Save replaces the stored snapshot with lines.
	Save(ctx context.Context, lines []model.CartLine) error

	// Load returns the stored snapshot, or no lines when nothing was saved.
	Load(ctx context.Context) ([]model.CartLine, error)
}

const persistTimeout = 5 * time.Second

// Store is an ordered collection of cart lines, at most one per product.
type Store struct {
	mu    sync.RWMutex
	lines []model.CartLine
	rules pricing.Rules

	persistMu sync.Mutex
	persister Persister
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves a snapshot after every mutation.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// NewStore creates an empty cart priced with rules.
func NewStore(rules pricing.Rules, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		rules:  rules,
		logger: logger.With().Str("component", "cart").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore replaces the in-memory lines with the persisted snapshot.
// Lines that violate the cart invariants are dropped.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	lines, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to restore cart snapshot")
		return err
	}

	restored := make([]model.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 || line.UnitPrice.IsNegative() {
			s.logger.Warn().Str("product_id", line.ProductID).Int("quantity", line.Quantity).Msg("dropping invalid snapshot line")
			continue
		}
		if slices.ContainsFunc(restored, func(l model.CartLine) bool { return l.ProductID == line.ProductID }) {
			continue
		}
		restored = append(restored, line)
	}

	s.mu.Lock()
	s.lines = restored
	s.mu.Unlock()

	s.logger.Info().Int("line_count", len(restored)).Msg("cart restored")
	return nil
}

// AddItem adds quantity units of product. An existing line has its quantity
// incremented and keeps the price captured when it was first added.
func (s *Store) AddItem(product model.Product, quantity int) ([]model.CartLine, error) {
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}
	if product.ID == "" {
		return nil, model.NewValidationError(map[string]string{"id": "product id is required"})
	}
	if product.Price.IsNegative() {
		return nil, model.NewValidationError(map[string]string{"price": "price cannot be negative"})
	}

	s.mu.Lock()
	if i := s.indexOf(product.ID); i >= 0 {
		if quantity > math.MaxInt-s.lines[i].Quantity {
			s.mu.Unlock()
			return nil, model.ErrInvalidQuantity
		}
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, model.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Size:      product.Size,
			Color:     product.Color,
		})
	}
	lines := slices.Clone(s.lines)
	s.mu.Unlock()

	s.logger.Debug().Str("product_id", product.ID).Int("quantity", quantity).Msg("item added")
	s.persist()

	return lines, nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a no-op.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i >= 0 {
		s.lines = slices.Delete(s.lines, i, i+1)
	}
	s.mu.Unlock()

	if i >= 0 {
		s.logger.Debug().Str("product_id", productID).Msg("item removed")
		s.persist()
	}
}

// UpdateQuantity sets the quantity of a line; a quantity of zero or less removes it.
// It reports whether a line for productID existed.
func (s *Store) UpdateQuantity(productID string, quantity int) bool {
	if quantity <= 0 {
		s.mu.RLock()
		found := s.indexOf(productID) >= 0
		s.mu.RUnlock()
		s.RemoveItem(productID)
		return found
	}

	s.mu.Lock()
	i := s.indexOf(productID)
	if i >= 0 {
		s.lines[i].Quantity = quantity
	}
	s.mu.Unlock()

	if i < 0 {
		return false
	}

	s.logger.Debug().Str("product_id", productID).Int("quantity", quantity).Msg("quantity updated")
	s.persist()
	return true
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()

	s.logger.Debug().Msg("cart cleared")
	s.persist()
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []model.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Totals derives the totals of the current lines. Nothing is cached.
func (s *Store) Totals() model.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pricing.ComputeTotals(s.lines, s.rules)
}

// View returns lines and totals computed from the same state.
func (s *Store) View() ([]model.CartLine, model.Totals) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines), pricing.ComputeTotals(s.lines, s.rules)
}

// Rules returns the pricing rules the cart is priced with.
func (s *Store) Rules() pricing.Rules {
	return s.rules
}

func (s *Store) indexOf(productID string) int {
	return slices.IndexFunc(s.lines, func(l model.CartLine) bool {
		return l.ProductID == productID
	})
}

// persist saves the latest state. Failures are logged only: the in-memory
// cart stays authoritative.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	lines := s.Lines()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.persister.Save(ctx, lines); err != nil {
		s.logger.Error().Err(err).Int("line_count", len(lines)).Msg("failed to persist cart snapshot")
	}
}
