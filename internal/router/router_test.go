package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cartsync/internal/coordinator"
	"cartsync/internal/handler"
	"cartsync/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "router-test-key"

type stubCartService struct {
	updates []int
}

func (s *stubCartService) GetCart(ctx context.Context) (*model.CartSnapshot, error) {
	return &model.CartSnapshot{Items: []model.LineItem{}}, nil
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartSnapshot, error) {
	s.updates = append(s.updates, quantity)
	items := []model.LineItem{{ID: id, ProductID: "P001", Quantity: quantity}}
	return &model.CartSnapshot{Items: items, Summary: model.Summarise(items)}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, req *model.AddItemRequest) (*model.CartSnapshot, error) {
	return nil, model.ErrProductNotFound
}

func (s *stubCartService) RemoveItem(ctx context.Context, id string) (*model.CartSnapshot, error) {
	return nil, model.ErrLineItemNotFound
}

func serve(h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew_Routes(t *testing.T) {
	svc := &stubCartService{}
	h := New(handler.NewCartHandler(svc, zerolog.Nop()), testAPIKey, zerolog.Nop())

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		authed         bool
		expectedStatus int
	}{
		{name: "Health without key", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "Cart requires key", method: http.MethodGet, path: "/api/cart", expectedStatus: http.StatusUnauthorized},
		{name: "Get cart", method: http.MethodGet, path: "/api/cart", authed: true, expectedStatus: http.StatusOK},
		{name: "Patch quantity", method: http.MethodPatch, path: "/api/cart/items/li-1", body: `{"quantity":2}`, authed: true, expectedStatus: http.StatusOK},
		{name: "Patch with cache buster", method: http.MethodPatch, path: "/api/cart/items/li-1?_=abc", body: `{"quantity":3}`, authed: true, expectedStatus: http.StatusOK},
		{name: "Add unknown product", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":"P404","quantity":1}`, authed: true, expectedStatus: http.StatusNotFound},
		{name: "Delete unknown item", method: http.MethodDelete, path: "/api/cart/items/li-9", authed: true, expectedStatus: http.StatusNotFound},
		{name: "Wrong method", method: http.MethodPost, path: "/api/cart", authed: true, expectedStatus: http.StatusMethodNotAllowed},
		{name: "Preflight", method: http.MethodOptions, path: "/api/cart", expectedStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.method, tt.path, tt.body, tt.authed)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}

	assert.Equal(t, []int{2, 3}, svc.updates)
}

type sessionService struct{}

func (sessionService) UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartSnapshot, error) {
	items := []model.LineItem{{ID: id, ProductID: "P001", Quantity: quantity}}
	return &model.CartSnapshot{Items: items, Summary: model.Summarise(items)}, nil
}

func (sessionService) FetchCart(ctx context.Context) (*model.CartSnapshot, error) {
	return &model.CartSnapshot{}, nil
}

func (sessionService) RemoveItem(ctx context.Context, id string) (*model.CartSnapshot, error) {
	return &model.CartSnapshot{Items: []model.LineItem{}}, nil
}

func TestNewStorefront_Routes(t *testing.T) {
	notes := coordinator.NewNotificationLog(10)
	coord := coordinator.New(sessionService{}, notes, zerolog.Nop())
	t.Cleanup(coord.Close)

	h := NewStorefront(
		handler.NewStorefrontHandler(coord, sessionService{}, notes, zerolog.Nop()),
		testAPIKey,
		zerolog.Nop(),
	)

	w := serve(h, http.MethodPut, "/api/cart/items/li-1/quantity", `{"quantity":5}`, true)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	require.NoError(t, coord.Wait(context.Background()))

	w = serve(h, http.MethodGet, "/api/cart", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var view handler.CartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Empty(t, view.Pending)

	w = serve(h, http.MethodGet, "/api/notifications", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodDelete, "/api/cart/items/li-1", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, coord.Snapshot().Items)

	w = serve(h, http.MethodPatch, "/api/cart/items/li-1", `{"quantity":1}`, true)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
