package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"cartsync/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps err to a status code and writes it. Errors that are
// not domain errors are reported as internal errors with fallback as message.
func writeDomainError(w http.ResponseWriter, err error, fallback string, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error().Err(err).Msg(fallback)
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, fallback, logger)
		return
	}

	status := http.StatusBadRequest
	switch domainErr.Code {
	case model.ErrCodeLineItemNotFound, model.ErrCodeProductNotFound:
		status = http.StatusNotFound
	case model.ErrCodeOutOfStock:
		status = http.StatusConflict
	}
	writeError(w, status, domainErr.Code, domainErr.Message, logger)
}

// decodeQuantity reads a {"quantity": n} body. It writes the error response
// itself and reports false when the body is unusable.
func decodeQuantity(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (int, bool) {
	var req model.QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return 0, false
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "quantity is required", logger)
		return 0, false
	}
	return *req.Quantity, true
}
