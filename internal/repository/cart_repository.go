package repository

import (
	"context"
	"errors"
	"fmt"

	"cartsync/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// ListItems returns every line item. Rows come back most recently updated
// first; callers that need a stable order must sort.
func (r *cartRepository) ListItems(ctx context.Context) ([]model.LineItem, error) {
	query := `
		SELECT ci.id, ci.product_id, ci.variant_id, ci.quantity,
		       ci.unit_price::text, ci.selected_weight::text,
		       p.name, p.slug
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		ORDER BY ci.updated_at DESC, ci.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]model.LineItem, 0)
	for rows.Next() {
		var (
			item      model.LineItem
			unitPrice string
			weight    *string
			info      model.ProductInfo
		)
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&unitPrice,
			&weight,
			&info.Name,
			&info.Slug,
		); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		if err := applyNumerics(&item, unitPrice, weight); err != nil {
			return nil, err
		}
		item.Product = &info
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// LockItem loads a line item and its product's stock with a row lock.
func (r *cartRepository) LockItem(ctx context.Context, tx pgx.Tx, id string) (*model.LineItem, int, error) {
	query := `
		SELECT ci.id, ci.product_id, ci.variant_id, ci.quantity,
		       ci.unit_price::text, ci.selected_weight::text, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1
		FOR UPDATE OF ci
	`

	var (
		item      model.LineItem
		unitPrice string
		weight    *string
		stock     int
	)
	err := tx.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.ProductID,
		&item.VariantID,
		&item.Quantity,
		&unitPrice,
		&weight,
		&stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("line_item_id", id).Msg("line item not found")
			return nil, 0, nil
		}
		r.logger.Error().Err(err).Str("line_item_id", id).Msg("failed to lock line item")
		return nil, 0, fmt.Errorf("failed to lock line item: %w", err)
	}

	if err := applyNumerics(&item, unitPrice, weight); err != nil {
		return nil, 0, err
	}

	return &item, stock, nil
}

// SetQuantity updates a line item's quantity within the transaction.
func (r *cartRepository) SetQuantity(ctx context.Context, tx pgx.Tx, id string, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("line_item_id", id).
			Int("quantity", quantity).
			Msg("failed to update quantity")
		return fmt.Errorf("failed to update quantity: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrLineItemNotFound
	}

	r.logger.Debug().
		Str("line_item_id", id).
		Int("quantity", quantity).
		Msg("quantity updated")

	return nil
}

// AddItem inserts a line item.
func (r *cartRepository) AddItem(ctx context.Context, item model.LineItem) error {
	query := `
		INSERT INTO cart_items (id, product_id, variant_id, quantity, unit_price, selected_weight)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
	`

	var weight *string
	if item.SelectedWeight != nil {
		w := item.SelectedWeight.String()
		weight = &w
	}

	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.ProductID,
		item.VariantID,
		item.Quantity,
		item.UnitPrice.String(),
		weight,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("line_item_id", item.ID).
			Str("product_id", item.ProductID).
			Msg("failed to add line item")
		return fmt.Errorf("failed to add line item: %w", err)
	}

	return nil
}

// DeleteItem removes a line item.
func (r *cartRepository) DeleteItem(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("line_item_id", id).Msg("failed to delete line item")
		return false, fmt.Errorf("failed to delete line item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// applyNumerics parses NUMERIC columns read as text.
func applyNumerics(item *model.LineItem, unitPrice string, weight *string) error {
	price, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return fmt.Errorf("invalid unit price %q for line item %s: %w", unitPrice, item.ID, err)
	}
	item.UnitPrice = price

	if weight != nil {
		w, err := decimal.NewFromString(*weight)
		if err != nil {
			return fmt.Errorf("invalid selected weight %q for line item %s: %w", *weight, item.ID, err)
		}
		item.SelectedWeight = &w
	}

	return nil
}
