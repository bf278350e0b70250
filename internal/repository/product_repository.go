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

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// Upsert inserts or updates products in a single batch.
func (r *productRepository) Upsert(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO products (id, name, slug, unit_price, stock)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    slug = EXCLUDED.slug,
		    unit_price = EXCLUDED.unit_price,
		    stock = EXCLUDED.stock
	`

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(query, p.ID, p.Name, p.Slug, p.UnitPrice.String(), p.Stock)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	affected := 0
	for i := 0; i < len(products); i++ {
		tag, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("product_id", products[i].ID).
				Msg("failed to upsert product")
			return affected, fmt.Errorf("failed to upsert product %s: %w", products[i].ID, err)
		}
		affected += int(tag.RowsAffected())
	}

	r.logger.Debug().Int("count", affected).Msg("products upserted")

	return affected, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `
		SELECT id, name, slug, unit_price::text, stock, created_at
		FROM products
		WHERE id = $1
	`

	var (
		p     model.Product
		price string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Slug, &price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	p.UnitPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid unit price %q for product %s: %w", price, id, err)
	}

	return &p, nil
}
