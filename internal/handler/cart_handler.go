package handler

import (
	"encoding/json"
	"net/http"

	"cartsync/internal/model"
	"cartsync/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler serves the cart data service API.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to retrieve cart", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// UpdateQuantity handles PATCH /api/cart/items/{id} requests.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "line item ID is required", h.logger)
		return
	}

	quantity, ok := decodeQuantity(w, r, h.logger)
	if !ok {
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), id, quantity)
	if err != nil {
		writeDomainError(w, err, "failed to update quantity", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "failed to add item", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, cart)
}

// RemoveItem handles DELETE /api/cart/items/{id} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "line item ID is required", h.logger)
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to remove item", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}
