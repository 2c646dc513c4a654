package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/config"
)

const defaultHTTPTimeout = 8 * time.Second

// RazorpayClient talks to the Razorpay Orders API over HTTP basic auth.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// RazorpayOption customises the client.
type RazorpayOption func(*RazorpayClient)

// WithHTTPClient overrides the underlying HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) RazorpayOption {
	return func(c *RazorpayClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewRazorpayClient constructs a processor client from configuration.
func NewRazorpayClient(cfg config.ProcessorConfig, opts ...RazorpayOption) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := &RazorpayClient{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		keyID:     strings.TrimSpace(cfg.KeyID),
		keySecret: strings.TrimSpace(cfg.KeySecret),
		client:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type razorpayOrderResponse struct {
	ID       string         `json:"id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Status   string         `json:"status"`
	Notes    map[string]any `json:"notes"`
}

// FetchOrder implements Client.
func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return Order{}, fmt.Errorf("%w: empty order id", ErrOrderNotFound)
	}

	endpoint := fmt.Sprintf("%s/v1/orders/%s", c.baseURL, url.PathEscape(trimmed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Order{}, fmt.Errorf("payments: build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, trimmed)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Order{}, fmt.Errorf("%w: status %d: %s", ErrProcessorUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Order{}, fmt.Errorf("%w: decode response: %v", ErrProcessorUnavailable, err)
	}

	return Order{
		ID:          payload.ID,
		AmountPaise: payload.Amount,
		Currency:    payload.Currency,
		Status:      payload.Status,
		Notes:       domain.NotesMap(payload.Notes),
	}, nil
}
