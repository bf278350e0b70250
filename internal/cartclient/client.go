// Package cartclient talks to the cart data service over HTTP.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cartsync/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Config holds client settings.
type Config struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cart service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cart service returned %d", e.StatusCode)
}

// UserMessage returns the server's human-readable message.
func (e *StatusError) UserMessage() string {
	return e.Message
}

// Temporary reports whether the failure is on the server side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithNonce overrides the cache-busting value generator.
func WithNonce(fn func() string) Option {
	return func(c *Client) { c.nonce = fn }
}

// Client implements the cart operations used by the quantity coordinator.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*model.CartSnapshot]
	nonce   func() string
	logger  zerolog.Logger
}

// New creates a cart service client.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid cart service URL %q", cfg.BaseURL)
	}

	logger = logger.With().Str("component", "cart-client").Logger()

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		nonce:   uuid.NewString,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*model.CartSnapshot](gobreaker.Settings{
		Name:    "cart-service",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// isBreakerSuccess keeps client-side rejections (4xx) and caller
// cancellations from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Temporary()
	}
	return false
}

// UpdateQuantity sets a line item's quantity and returns the updated cart.
func (c *Client) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*model.CartSnapshot, error) {
	body, err := json.Marshal(struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity})
	if err != nil {
		return nil, fmt.Errorf("failed to encode quantity: %w", err)
	}
	return c.do(ctx, http.MethodPatch, "/api/cart/items/"+url.PathEscape(lineItemID), body)
}

// FetchCart reads the current cart.
func (c *Client) FetchCart(ctx context.Context) (*model.CartSnapshot, error) {
	return c.do(ctx, http.MethodGet, "/api/cart", nil)
}

// RemoveItem deletes a line item and returns the updated cart.
func (c *Client) RemoveItem(ctx context.Context, lineItemID string) (*model.CartSnapshot, error) {
	return c.do(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(lineItemID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*model.CartSnapshot, error) {
	snapshot, err := c.breaker.Execute(func() (*model.CartSnapshot, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("cart service unavailable: %w", err)
		}
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (*model.CartSnapshot, error) {
	u := c.baseURL.JoinPath(path)
	q := u.Query()
	q.Set("_", c.nonce())
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("cart service request failed")
		return nil, fmt.Errorf("cart service request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("cart service response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeStatusError(resp)
	}

	var snapshot model.CartSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode cart response: %w", err)
	}

	return &snapshot, nil
}

// decodeStatusError reads the error body, preferring the message field.
func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return statusErr
	}

	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return statusErr
	}

	statusErr.Code = body.Error
	statusErr.Message = body.Message
	if statusErr.Message == "" {
		statusErr.Message = body.Error
	}

	return statusErr
}
