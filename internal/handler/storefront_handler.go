package handler

import (
	"context"
	"errors"
	"net/http"

	"cartsync/internal/cartclient"
	"cartsync/internal/coordinator"
	"cartsync/internal/model"

	"github.com/rs/zerolog"
)

// QuantityCoordinator is the part of the coordinator the storefront uses.
type QuantityCoordinator interface {
	RequestQuantityChange(lineItemID string, quantity int)
	Snapshot() model.CartSnapshot
	SetSnapshot(snapshot model.CartSnapshot)
	PendingIDs() []string
	IsPending(lineItemID string) bool
	DiscardPending(lineItemID string) int
}

// ItemRemover removes a line item upstream and returns the resulting cart.
type ItemRemover interface {
	RemoveItem(ctx context.Context, lineItemID string) (*model.CartSnapshot, error)
}

// NotificationSource lists recent user-facing notifications.
type NotificationSource interface {
	Recent() []coordinator.Notification
}

// CartView is the storefront's rendering of the cart.
type CartView struct {
	Items   []model.LineItem   `json:"items"`
	Summary model.OrderSummary `json:"summary"`
	Pending []string           `json:"pending"`
}

// QuantityAccepted acknowledges a quantity change that will be sent later.
type QuantityAccepted struct {
	LineItemID string `json:"lineItemId"`
	Quantity   int    `json:"quantity"`
	Pending    bool   `json:"pending"`
}

// StorefrontHandler exposes one cart session to the browser.
type StorefrontHandler struct {
	coordinator   QuantityCoordinator
	remover       ItemRemover
	notifications NotificationSource
	logger        zerolog.Logger
}

// NewStorefrontHandler creates a new storefront handler.
func NewStorefrontHandler(
	coordinator QuantityCoordinator,
	remover ItemRemover,
	notifications NotificationSource,
	logger zerolog.Logger,
) *StorefrontHandler {
	return &StorefrontHandler{
		coordinator:   coordinator,
		remover:       remover,
		notifications: notifications,
		logger:        logger.With().Str("handler", "storefront").Logger(),
	}
}

func (h *StorefrontHandler) view() CartView {
	snapshot := h.coordinator.Snapshot()
	view := CartView{
		Items:   snapshot.Items,
		Summary: snapshot.Summary,
		Pending: h.coordinator.PendingIDs(),
	}
	if view.Items == nil {
		view.Items = []model.LineItem{}
	}
	if view.Pending == nil {
		view.Pending = []string{}
	}
	return view
}

// GetCart handles GET /api/cart requests.
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// SetQuantity handles PUT /api/cart/items/{id}/quantity requests.
func (h *StorefrontHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "line item ID is required", h.logger)
		return
	}

	quantity, ok := decodeQuantity(w, r, h.logger)
	if !ok {
		return
	}

	h.coordinator.RequestQuantityChange(id, quantity)

	writeJSON(w, http.StatusAccepted, QuantityAccepted{
		LineItemID: id,
		Quantity:   quantity,
		Pending:    h.coordinator.IsPending(id),
	})
}

// RemoveItem handles DELETE /api/cart/items/{id} requests.
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "line item ID is required", h.logger)
		return
	}

	if dropped := h.coordinator.DiscardPending(id); dropped > 0 {
		h.logger.Debug().Str("line_item_id", id).Int("dropped", dropped).Msg("discarded queued updates before removal")
	}

	snapshot, err := h.remover.RemoveItem(r.Context(), id)
	if err != nil {
		var statusErr *cartclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, model.ErrCodeLineItemNotFound, statusErr.UserMessage(), h.logger)
			return
		}
		h.logger.Error().Err(err).Str("line_item_id", id).Msg("failed to remove item")
		writeError(w, http.StatusBadGateway, model.ErrCodeUpstream, "cart service unavailable", h.logger)
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusBadGateway, model.ErrCodeUpstream, "cart service returned no cart", h.logger)
		return
	}

	h.coordinator.SetSnapshot(*snapshot)
	writeJSON(w, http.StatusOK, h.view())
}

// Notifications handles GET /api/notifications requests.
func (h *StorefrontHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	recent := h.notifications.Recent()
	if recent == nil {
		recent = []coordinator.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": recent})
}
