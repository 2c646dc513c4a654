package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/payments"
	"github.com/zecurx/api/internal/platform/httpx"
	"github.com/zecurx/api/internal/platform/observability"
	"github.com/zecurx/api/internal/services"
)

const (
	maxWebhookBody         = 256 * 1024
	webhookSignatureHeader = "X-Razorpay-Signature"

	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
	eventRefundCreated   = "refund.created"
)

// WebhookHandlers receives processor push notifications. Deliveries are
// at-least-once; anything answered with a 5xx gets redelivered.
type WebhookHandlers struct {
	fulfillment   services.FulfillmentService
	webhookSecret string
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(fulfillment services.FulfillmentService, webhookSecret string) *WebhookHandlers {
	return &WebhookHandlers{
		fulfillment:   fulfillment,
		webhookSecret: webhookSecret,
	}
}

// Routes registers webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/webhook", h.handleWebhook)
	r.Get("/webhook", h.describeWebhook)
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string          `json:"id"`
				OrderID string          `json:"order_id"`
				Amount  int64           `json:"amount"`
				Notes   domain.NotesMap `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

func (h *WebhookHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	if h.fulfillment == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.webhookSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("configuration_error", "webhook secret is not configured", http.StatusInternalServerError))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	// The signature covers the raw body bytes, so verification happens
	// before any decoding.
	signature := r.Header.Get(webhookSignatureHeader)
	if !payments.VerifyWebhookSignature(body, signature, h.webhookSecret) {
		logger.Warn("webhook signature mismatch", zap.String("remote", r.RemoteAddr))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature mismatch", http.StatusUnauthorized))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook body must be valid JSON", http.StatusBadRequest))
		return
	}

	switch event.Event {
	case eventPaymentCaptured:
		h.handlePaymentCaptured(w, r, event)
	case eventPaymentFailed:
		logger.Info("payment failed",
			zap.String("payment_id", event.Payload.Payment.Entity.ID),
			zap.String("order_id", event.Payload.Payment.Entity.OrderID),
		)
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "acknowledged"})
	case eventRefundCreated:
		h.handleRefundCreated(w, r, event)
	default:
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ignored", "event": event.Event})
	}
}

func (h *WebhookHandlers) handlePaymentCaptured(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	ctx := r.Context()
	entity := event.Payload.Payment.Entity

	result, err := h.fulfillment.FulfillCaptured(ctx, services.CapturedPaymentCommand{
		PaymentID:    entity.ID,
		OrderID:      entity.OrderID,
		AmountRupees: float64(entity.Amount) / 100,
		Notes:        entity.Notes,
	})
	if err != nil {
		// Only transient store failures earn a 5xx; the processor will
		// redeliver. Permanently bad payloads are acknowledged so they do
		// not redeliver forever.
		if errors.Is(err, services.ErrShopOrderPersist) && !errors.Is(err, domain.ErrInvalidItems) {
			httpx.WriteError(ctx, w, httpx.NewError("order_persist_failed", "failed to record the order", http.StatusInternalServerError))
			return
		}
		observability.FromContext(ctx).Warn("webhook fulfillment rejected",
			zap.String("payment_id", entity.ID), zap.Error(err))
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "rejected"})
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":  "processed",
		"outcome": string(result.Outcome),
	})
}

func (h *WebhookHandlers) handleRefundCreated(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	ctx := r.Context()
	paymentID := event.Payload.Refund.Entity.PaymentID

	if err := h.fulfillment.RecordRefund(ctx, paymentID); err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			writeJSONResponse(w, http.StatusOK, map[string]any{"status": "rejected"})
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("refund_persist_failed", "failed to record the refund", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "processed"})
}

func (h *WebhookHandlers) describeWebhook(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "active",
		"supportedEvents": []string{
			eventPaymentCaptured,
			eventPaymentFailed,
			eventRefundCreated,
		},
	})
}
