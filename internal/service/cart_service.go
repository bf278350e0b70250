package service

import (
	"context"
	"fmt"

	"cartsync/internal/model"
	"cartsync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// GetCart returns every line item with the order summary.
func (s *cartService) GetCart(ctx context.Context) (*model.CartSnapshot, error) {
	items, err := s.cartRepo.ListItems(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list cart items")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if items == nil {
		items = []model.LineItem{}
	}

	return &model.CartSnapshot{
		Items:   items,
		Summary: model.Summarise(items),
	}, nil
}

// UpdateQuantity sets a line item's quantity. Requests above the product's
// stock are clamped to the stock level. Zero is stored as zero; removal is a
// separate operation.
func (s *cartService) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (snapshot *model.CartSnapshot, err error) {
	if lineItemID == "" {
		return nil, fmt.Errorf("line item ID is required")
	}

	if quantity < 0 {
		s.logger.Warn().
			Str("line_item_id", lineItemID).
			Int("quantity", quantity).
			Msg("invalid quantity")
		return nil, model.ErrInvalidQuantity
	}

	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	committed := false
	defer func() {
		if err != nil && !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	item, stock, err := s.cartRepo.LockItem(ctx, tx, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}
	if item == nil {
		err = model.ErrLineItemNotFound
		return nil, err
	}

	applied := quantity
	if applied > stock {
		applied = stock
		s.logger.Info().
			Str("line_item_id", lineItemID).
			Int("requested", quantity).
			Int("stock", stock).
			Msg("quantity clamped to stock")
	}

	if err = s.cartRepo.SetQuantity(ctx, tx, lineItemID, applied); err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("line_item_id", lineItemID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}
	committed = true

	s.logger.Debug().
		Str("line_item_id", lineItemID).
		Int("previous", item.Quantity).
		Int("quantity", applied).
		Msg("quantity updated")

	return s.GetCart(ctx)
}

// AddItem adds a product to the cart. The quantity is clamped to stock.
func (s *cartService) AddItem(ctx context.Context, req *model.AddItemRequest) (*model.CartSnapshot, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.ProductID == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "productId is required")
	}
	if req.Quantity < 1 {
		return nil, model.NewDomainError(model.ErrCodeInvalidQuantity, "Quantity must be at least 1")
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to add line item: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	quantity := min(req.Quantity, product.Stock)
	if quantity < 1 {
		s.logger.Warn().Str("product_id", product.ID).Msg("product out of stock")
		return nil, model.ErrOutOfStock
	}

	item := model.LineItem{
		ID:             uuid.NewString(),
		ProductID:      product.ID,
		VariantID:      req.VariantID,
		Quantity:       quantity,
		UnitPrice:      product.UnitPrice,
		SelectedWeight: req.SelectedWeight,
	}
	if err := s.cartRepo.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add line item: %w", err)
	}

	s.logger.Info().
		Str("line_item_id", item.ID).
		Str("product_id", product.ID).
		Int("quantity", quantity).
		Msg("line item added")

	return s.GetCart(ctx)
}

// RemoveItem deletes a line item and returns the updated cart.
func (s *cartService) RemoveItem(ctx context.Context, lineItemID string) (*model.CartSnapshot, error) {
	if lineItemID == "" {
		return nil, fmt.Errorf("line item ID is required")
	}

	deleted, err := s.cartRepo.DeleteItem(ctx, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove line item: %w", err)
	}
	if !deleted {
		return nil, model.ErrLineItemNotFound
	}

	s.logger.Info().Str("line_item_id", lineItemID).Msg("line item removed")

	return s.GetCart(ctx)
}
