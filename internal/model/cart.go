package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem represents one purchasable entry in a cart.
type LineItem struct {
	ID             string           `json:"id" db:"id"`
	ProductID      string           `json:"productId" db:"product_id"`
	VariantID      *string          `json:"variantId,omitempty" db:"variant_id"`
	Quantity       int              `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unitPrice" db:"unit_price"`
	SelectedWeight *decimal.Decimal `json:"selectedWeight,omitempty" db:"selected_weight"`
	Product        *ProductInfo     `json:"product,omitempty"`
	Variant        *VariantInfo     `json:"variant,omitempty"`
}

// ProductInfo carries product display data nested in a line item.
type ProductInfo struct {
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// VariantInfo carries variant display data nested in a line item.
type VariantInfo struct {
	Name string `json:"name"`
	SKU  string `json:"sku,omitempty"`
}

// LineTotal returns unit price multiplied by quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderSummary is derived from the line items of a cart.
type OrderSummary struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ItemCount     int             `json:"itemCount"`
	TotalQuantity int             `json:"totalQuantity"`
}

// CartSnapshot is the authoritative cart state returned after any mutation.
type CartSnapshot struct {
	Items   []LineItem   `json:"items"`
	Summary OrderSummary `json:"summary"`
}

// Summarise computes the order summary for the given line items.
func Summarise(items []LineItem) OrderSummary {
	summary := OrderSummary{
		Subtotal:  decimal.Zero,
		ItemCount: len(items),
	}
	for _, item := range items {
		summary.Subtotal = summary.Subtotal.Add(item.LineTotal())
		summary.TotalQuantity += item.Quantity
	}
	return summary
}

// Clone returns a copy of the snapshot that shares no slices or pointers
// with the receiver.
func (s CartSnapshot) Clone() CartSnapshot {
	out := CartSnapshot{Summary: s.Summary}
	if s.Items == nil {
		return out
	}
	out.Items = make([]LineItem, len(s.Items))
	for i, item := range s.Items {
		if item.VariantID != nil {
			v := *item.VariantID
			item.VariantID = &v
		}
		if item.SelectedWeight != nil {
			w := *item.SelectedWeight
			item.SelectedWeight = &w
		}
		if item.Product != nil {
			p := *item.Product
			item.Product = &p
		}
		if item.Variant != nil {
			v := *item.Variant
			item.Variant = &v
		}
		out.Items[i] = item
	}
	return out
}

// Find returns the line item with the given ID.
func (s CartSnapshot) Find(id string) (LineItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LineItem{}, false
}

// PendingUpdate is a requested quantity change not yet confirmed by the server.
type PendingUpdate struct {
	Quantity   int       `json:"quantity"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// QuantityRequest is the payload for a quantity update.
type QuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// AddItemRequest is the payload for adding a product to the cart.
type AddItemRequest struct {
	ProductID      string           `json:"productId"`
	VariantID      *string          `json:"variantId,omitempty"`
	Quantity       int              `json:"quantity"`
	SelectedWeight *decimal.Decimal `json:"selectedWeight,omitempty"`
}
