package service

import (
	"context"

	"cartsync/internal/model"
)

// CartService defines the authoritative cart operations.
type CartService interface {
	// GetCart returns every line item with the order summary.
	GetCart(ctx context.Context) (*model.CartSnapshot, error)

	// UpdateQuantity sets a line item's quantity, clamped to available stock,
	// and returns the updated cart.
	UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*model.CartSnapshot, error)

	// AddItem adds a product to the cart at its current price and returns the
	// updated cart.
	AddItem(ctx context.Context, req *model.AddItemRequest) (*model.CartSnapshot, error)

	// RemoveItem deletes a line item and returns the updated cart.
	RemoveItem(ctx context.Context, lineItemID string) (*model.CartSnapshot, error)
}
