package catalog

import (
	"context"
	"fmt"

	"cartsync/internal/model"

	"github.com/rs/zerolog"
)

// Store persists imported products.
type Store interface {
	Upsert(ctx context.Context, products []model.Product) (int, error)
}

// Import loads the catalogue at path and upserts it into store. It returns
// the number of products written.
func Import(ctx context.Context, loader Loader, path string, store Store, logger zerolog.Logger) (int, error) {
	products, err := loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}

	written, err := store.Upsert(ctx, products)
	if err != nil {
		return written, fmt.Errorf("failed to store catalog: %w", err)
	}

	logger.Info().
		Str("path", path).
		Int("products", len(products)).
		Int("written", written).
		Msg("catalog imported")

	return written, nil
}
