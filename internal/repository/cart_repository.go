package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

const cartSchema = `
	CREATE TABLE IF NOT EXISTS cart_lines (
		cart_id    TEXT NOT NULL,
		position   INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		image_url  TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC NOT NULL CHECK (unit_price >= 0),
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		size       TEXT NOT NULL DEFAULT '',
		color      TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (cart_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_cart_lines_position ON cart_lines(cart_id, position);
`

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	cartID string
	logger zerolog.Logger
}

// NewCartRepository creates a PostgreSQL-backed snapshot store for cartID.
func NewCartRepository(pool *pgxpool.Pool, cartID string, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		cartID: cartID,
		logger: logger.With().Str("repository", "cart").Str("cart_id", cartID).Logger(),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (r *cartRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, cartSchema); err != nil {
		r.logger.Error().Err(err).Msg("failed to create cart schema")
		return fmt.Errorf("failed to create cart schema: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot within one transaction.
func (r *cartRepository) Save(ctx context.Context, lines []model.CartLine) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, r.cartID); err != nil {
		r.logger.Error().Err(err).Msg("failed to clear cart snapshot")
		return fmt.Errorf("failed to clear cart snapshot: %w", err)
	}

	if len(lines) > 0 {
		query := `
			INSERT INTO cart_lines (cart_id, position, product_id, name, image_url, unit_price, quantity, size, color)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		`

		batch := &pgx.Batch{}
		for i, l := range lines {
			batch.Queue(query, r.cartID, i, l.ProductID, l.Name, l.ImageURL, l.UnitPrice.String(), l.Quantity, l.Size, l.Color)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range lines {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				r.logger.Error().
					Err(err).
					Str("product_id", lines[i].ProductID).
					Msg("failed to save cart line")
				return fmt.Errorf("failed to save cart line: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit cart snapshot")
		return fmt.Errorf("failed to commit cart snapshot: %w", err)
	}

	r.logger.Debug().Int("lines", len(lines)).Msg("cart snapshot saved")
	return nil
}

// Load returns the stored snapshot in insertion order.
func (r *cartRepository) Load(ctx context.Context) ([]model.CartLine, error) {
	query := `
		SELECT product_id, name, image_url, unit_price::text, quantity, size, color
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, r.cartID)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query cart snapshot")
		return nil, fmt.Errorf("failed to query cart snapshot: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var (
			l     model.CartLine
			price string
		)
		if err := rows.Scan(&l.ProductID, &l.Name, &l.ImageURL, &price, &l.Quantity, &l.Size, &l.Color); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart line row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		l.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart line rows")
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}
