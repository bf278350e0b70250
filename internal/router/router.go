package router

import (
	"net/http"

	"cartsync/internal/handler"
	"cartsync/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates the cart data service router with all routes and middleware configured.
func New(cartHandler *handler.CartHandler, apiKey string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	registerHealth(mux)

	mux.HandleFunc("GET /api/cart", cartHandler.Get)
	mux.HandleFunc("POST /api/cart/items", cartHandler.AddItem)
	mux.HandleFunc("PATCH /api/cart/items/{id}", cartHandler.UpdateQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{id}", cartHandler.RemoveItem)

	return withMiddleware(mux, apiKey, logger)
}

// NewStorefront creates the storefront router that fronts one cart session.
func NewStorefront(storefrontHandler *handler.StorefrontHandler, apiKey string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	registerHealth(mux)

	mux.HandleFunc("GET /api/cart", storefrontHandler.GetCart)
	mux.HandleFunc("PUT /api/cart/items/{id}/quantity", storefrontHandler.SetQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{id}", storefrontHandler.RemoveItem)
	mux.HandleFunc("GET /api/notifications", storefrontHandler.Notifications)

	return withMiddleware(mux, apiKey, logger)
}

// Health check endpoint (no authentication required)
func registerHealth(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
}

// Apply middleware in order: Recovery -> RequestID -> Logging -> CORS -> NoCache -> APIKeyAuth
func withMiddleware(mux *http.ServeMux, apiKey string, logger zerolog.Logger) http.Handler {
	var h http.Handler = mux
	h = middleware.APIKeyAuth(apiKey, logger)(h)
	h = middleware.NoCache(h)
	h = middleware.CORS(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(logger)(h)
	return h
}
