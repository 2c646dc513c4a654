package payments

import (
	"context"
	"errors"

	"github.com/zecurx/api/internal/domain"
)

var (
	// ErrOrderNotFound indicates the processor has no record of the order id.
	ErrOrderNotFound = errors.New("payments: order not found")
	// ErrProcessorUnavailable indicates the processor could not be reached or
	// answered with a server error; webhook redelivery will retry.
	ErrProcessorUnavailable = errors.New("payments: processor unavailable")
)

// Order is the authoritative processor record of what was agreed at checkout.
// Amount is in minor units (paise) exactly as the processor reports it.
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Status      string
	Notes       domain.NotesMap
}

// AmountRupees converts the processor's minor units to major units.
func (o Order) AmountRupees() float64 {
	return float64(o.AmountPaise) / 100
}

// Client fetches order metadata from the payment processor. The processor is
// the sole source of truth for the amount and notes of a captured charge.
type Client interface {
	FetchOrder(ctx context.Context, orderID string) (Order, error)
}
