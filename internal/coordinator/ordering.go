package coordinator

import (
	"slices"
	"strings"

	"cartsync/internal/model"
)

// SortLineItems orders items by product ID, then selected weight (items
// without a weight first), then line item ID. The order depends only on
// those fields, so sorting an already sorted slice leaves it unchanged.
func SortLineItems(items []model.LineItem) {
	slices.SortStableFunc(items, compareLineItems)
}

func compareLineItems(a, b model.LineItem) int {
	if c := strings.Compare(a.ProductID, b.ProductID); c != 0 {
		return c
	}

	switch {
	case a.SelectedWeight == nil && b.SelectedWeight != nil:
		return -1
	case a.SelectedWeight != nil && b.SelectedWeight == nil:
		return 1
	case a.SelectedWeight != nil && b.SelectedWeight != nil:
		if c := a.SelectedWeight.Cmp(*b.SelectedWeight); c != 0 {
			return c
		}
	}

	return strings.Compare(a.ID, b.ID)
}
