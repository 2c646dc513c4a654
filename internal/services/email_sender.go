package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zecurx/api/internal/platform/config"
)

// HTTPEmailSender posts purchase confirmations to the transactional email
// endpoint as JSON, mirroring the site's send-email contract.
type HTTPEmailSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEmailSender constructs the sender from configuration.
func NewHTTPEmailSender(cfg config.EmailConfig) (*HTTPEmailSender, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("email: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEmailSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type purchaseEmailPayload struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	FormType  string  `json:"formType"`
	ItemName  string  `json:"itemName"`
	Price     float64 `json:"price"`
	PaymentID string  `json:"paymentId"`
	Mobile    string  `json:"mobile,omitempty"`
	College   string  `json:"college,omitempty"`
}

// SendPurchaseConfirmation implements EmailSender.
func (s *HTTPEmailSender) SendPurchaseConfirmation(ctx context.Context, email PurchaseEmail) error {
	payload := purchaseEmailPayload{
		Name:      email.Name,
		Email:     email.Email,
		FormType:  "purchase",
		ItemName:  email.ItemName,
		Price:     email.Amount,
		PaymentID: email.PaymentID,
		Mobile:    email.Phone,
		College:   email.College,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("email: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("email: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NopEmailSender drops all mail; used when email is disabled and in tests.
type NopEmailSender struct{}

// SendPurchaseConfirmation implements EmailSender.
func (NopEmailSender) SendPurchaseConfirmation(context.Context, PurchaseEmail) error { return nil }
