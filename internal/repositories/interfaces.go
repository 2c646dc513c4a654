package repositories

import (
	"context"

	"github.com/zecurx/api/internal/domain"
)

// CustomerUpsert carries one insert-or-merge request. Optional fields are nil
// when the notes did not supply them; a nil field never overwrites a stored
// value.
type CustomerUpsert struct {
	ID       string
	Email    string
	Name     *string
	Phone    *string
	Whatsapp *string
	College  *string
}

// CustomerRepository persists purchasers keyed by normalized email.
type CustomerRepository interface {
	Upsert(ctx context.Context, req CustomerUpsert) (domain.Customer, error)
}

// InventoryRepository owns the guarded stock decrement; it is the only code
// that mutates Product.stock.
type InventoryRepository interface {
	// Decrement atomically subtracts quantity while the remaining stock
	// stays non-negative; ErrInsufficientStock otherwise.
	Decrement(ctx context.Context, productID string, quantity int) error
	// Availability reports current stock for the given product ids.
	Availability(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

// ShopOrderRecord bundles the header and lines written for one goods order.
type ShopOrderRecord struct {
	Order domain.ShopOrder
	Items []domain.ShopOrderItem
}

// ShopOrderOutcome reports what a Record call actually did. AlreadyProcessed
// means a previous delivery of the same payment id won the insert and nothing
// was written this time.
type ShopOrderOutcome struct {
	OrderID          string
	AlreadyProcessed bool
	Shortfalls       []domain.OrderIssue
}

// ShopOrderWithItems is the read model returned to customers listing orders.
type ShopOrderWithItems struct {
	Order domain.ShopOrder
	Items []domain.ShopOrderItem
}

// ShopOrderRepository persists goods orders. Record runs header, lines,
// stock decrements, and shortfall issues in one transaction.
type ShopOrderRepository interface {
	Record(ctx context.Context, rec ShopOrderRecord) (ShopOrderOutcome, error)
	ListByEmail(ctx context.Context, email string) ([]ShopOrderWithItems, error)
}

// TransactionRepository persists service and plan payment records.
type TransactionRepository interface {
	// Insert writes the transaction unless one already exists for the same
	// payment id; created is false on a duplicate delivery and tx is the
	// stored record either way.
	Insert(ctx context.Context, tx domain.Transaction) (stored domain.Transaction, created bool, err error)
	// MarkRefunded flips the status for the given payment id.
	MarkRefunded(ctx context.Context, paymentID string) error
}

// PlanRepository resolves purchasable plans.
type PlanRepository interface {
	FindByName(ctx context.Context, name string) (domain.Plan, error)
}

// OrderIssueRepository exposes fulfillment problems for operational review.
type OrderIssueRepository interface {
	List(ctx context.Context, limit int) ([]domain.OrderIssue, error)
}
