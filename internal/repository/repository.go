package repository

import (
	"context"

	"cartsync/internal/model"

	"github.com/jackc/pgx/v5"
)

// CartRepository defines data access for cart line items.
type CartRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// ListItems returns every line item with product display data.
	ListItems(ctx context.Context) ([]model.LineItem, error)

	// LockItem loads a line item and its product's stock, locking the row
	// for the rest of the transaction. Returns nil when the item does not exist.
	LockItem(ctx context.Context, tx pgx.Tx, id string) (*model.LineItem, int, error)

	// SetQuantity updates a line item's quantity within the transaction.
	SetQuantity(ctx context.Context, tx pgx.Tx, id string, quantity int) error

	// AddItem inserts a line item.
	AddItem(ctx context.Context, item model.LineItem) error

	// DeleteItem removes a line item. Reports whether a row was deleted.
	DeleteItem(ctx context.Context, id string) (bool, error)
}

// ProductRepository defines data access for catalogue products.
type ProductRepository interface {
	// Upsert inserts or updates products and returns how many rows changed.
	Upsert(ctx context.Context, products []model.Product) (int, error)

	// GetByID retrieves a single product by its ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}
