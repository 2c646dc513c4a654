package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/httpx"
	"github.com/zecurx/api/internal/services"
)

const maxVerifyRequestBody = 32 * 1024

// invalidSignatureMessage is part of the public API contract; checkout
// clients match on this exact wording.
const invalidSignatureMessage = "Payment verification failed - invalid signature"

// PaymentHandlers exposes the payment confirmation endpoint.
type PaymentHandlers struct {
	fulfillment services.FulfillmentService
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(fulfillment services.FulfillmentService) *PaymentHandlers {
	return &PaymentHandlers{fulfillment: fulfillment}
}

// Routes registers payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/verify", h.verifyPayment)
}

type verifyPaymentRequest struct {
	OrderID   string          `json:"orderId"`
	PaymentID string          `json:"paymentId"`
	Signature string          `json:"signature"`
	DevMode   bool            `json:"devMode"`
	Metadata  domain.NotesMap `json:"metadata"`

	// Checkout widgets historically posted the processor's own field names.
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type verifyPaymentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

func (h *PaymentHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fulfillment == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment verification unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxVerifyRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("missing_fields", "orderId, paymentId and signature are required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req verifyPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.ConfirmPaymentCommand{
		OrderID:     firstNonEmpty(req.OrderID, req.RazorpayOrderID),
		PaymentID:   firstNonEmpty(req.PaymentID, req.RazorpayPaymentID),
		Signature:   firstNonEmpty(req.Signature, req.RazorpaySignature),
		DevMode:     req.DevMode,
		DevMetadata: req.Metadata,
	}

	result, err := h.fulfillment.ConfirmPayment(ctx, cmd)
	if err != nil {
		h.writeVerifyError(ctx, w, err)
		return
	}

	message := "Payment verified successfully"
	if result.AlreadyProcessed {
		message = "Payment already verified"
	}

	writeJSONResponse(w, http.StatusOK, verifyPaymentResponse{
		Success:   true,
		Message:   message,
		PaymentID: result.PaymentID,
		OrderID:   result.OrderID,
	})
}

func (h *PaymentHandlers) writeVerifyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		httpx.WriteError(ctx, w, httpx.NewError("missing_fields", "orderId, paymentId and signature are required", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", invalidSignatureMessage, http.StatusBadRequest))
	case errors.Is(err, domain.ErrInvalidEmail):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_email", "order metadata carries an invalid email address", http.StatusBadRequest))
	case errors.Is(err, services.ErrSecretNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("configuration_error", "payment verification is not configured", http.StatusInternalServerError))
	case errors.Is(err, services.ErrOrderLookup):
		httpx.WriteError(ctx, w, httpx.NewError("order_lookup_failed", "could not confirm the order with the payment processor", http.StatusInternalServerError))
	case errors.Is(err, services.ErrShopOrderPersist):
		httpx.WriteError(ctx, w, httpx.NewError("order_persist_failed", "failed to record the order", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process payment verification", http.StatusInternalServerError))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
