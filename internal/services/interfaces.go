package services

import (
	"context"
	"errors"
	"time"

	"github.com/zecurx/api/internal/domain"
)

var (
	// ErrMissingFields signals the confirmation lacked required identifiers.
	ErrMissingFields = errors.New("fulfillment: missing required payment verification fields")
	// ErrInvalidSignature signals an authenticity failure; nothing was written.
	ErrInvalidSignature = errors.New("fulfillment: invalid signature")
	// ErrSecretNotConfigured signals the server has no signing secret and
	// cannot verify anything.
	ErrSecretNotConfigured = errors.New("fulfillment: verification secret not configured")
	// ErrOrderLookup signals the processor could not confirm the order;
	// webhook redelivery will retry.
	ErrOrderLookup = errors.New("fulfillment: processor order lookup failed")
	// ErrShopOrderPersist signals a paid physical order could not be
	// recorded. This is the one bookkeeping failure surfaced to the caller.
	ErrShopOrderPersist = errors.New("fulfillment: shop order could not be recorded")
)

// FulfillmentOutcome names what the pipeline did after verification.
type FulfillmentOutcome string

const (
	// OutcomeShopFulfilled means a goods order with items was recorded.
	OutcomeShopFulfilled FulfillmentOutcome = "shop_fulfilled"
	// OutcomeServiceFulfilled means a customer and transaction were recorded.
	OutcomeServiceFulfilled FulfillmentOutcome = "service_fulfilled"
	// OutcomeSkipped means the payment verified but carried no notes to act on.
	OutcomeSkipped FulfillmentOutcome = "skipped"
)

// ConfirmPaymentCommand is the client-side confirmation of a captured charge.
type ConfirmPaymentCommand struct {
	OrderID   string
	PaymentID string
	Signature string
	// DevMode asks for the verification bypass; honored only when the server
	// configuration independently allows it.
	DevMode     bool
	DevMetadata domain.NotesMap
}

// CapturedPaymentCommand is a processor-push delivery of a captured charge.
// The webhook signature over the raw body has already been checked by the
// handler, so the payload itself is the authoritative metadata.
type CapturedPaymentCommand struct {
	PaymentID    string
	OrderID      string
	AmountRupees float64
	Notes        domain.NotesMap
}

// FulfillmentResult reports what happened. Warnings carries soft failures the
// orchestrator consciously downgraded: the payment stays confirmed, the gap
// is reconciled out of band.
type FulfillmentResult struct {
	Outcome          FulfillmentOutcome
	OrderID          string
	PaymentID        string
	ShopOrderID      string
	TransactionID    string
	CustomerID       string
	AlreadyProcessed bool
	Warnings         []string
}

// FulfillmentService verifies payment confirmations and records their
// consequences exactly once.
type FulfillmentService interface {
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (FulfillmentResult, error)
	FulfillCaptured(ctx context.Context, cmd CapturedPaymentCommand) (FulfillmentResult, error)
	RecordRefund(ctx context.Context, paymentID string) error
}

// PurchaseEmail is the payload for the post-fulfillment confirmation email.
type PurchaseEmail struct {
	Name      string
	Email     string
	ItemName  string
	Amount    float64
	PaymentID string
	Phone     string
	College   string
}

// EmailSender delivers transactional email. Sends happen after all store
// mutations; a failure is a soft warning, never a fulfillment error.
type EmailSender interface {
	SendPurchaseConfirmation(ctx context.Context, email PurchaseEmail) error
}

// PurchaseRecord is one row of the roster mirrored for internship purchases.
type PurchaseRecord struct {
	Date      time.Time
	Name      string
	Email     string
	Phone     string
	ItemName  string
	Amount    float64
	PaymentID string
}

// PurchaseExporter mirrors completed internship purchases into an external
// roster. Like email, exports run after all store mutations and a failure is
// a soft warning.
type PurchaseExporter interface {
	ExportPurchase(ctx context.Context, record PurchaseRecord) error
}
