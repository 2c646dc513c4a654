package domain

import "time"

// Customer is a purchaser keyed by normalized email. Optional fields are
// pointers so an upsert can distinguish "absent" from "empty".
type Customer struct {
	ID        string
	Email     string
	Name      *string
	Phone     *string
	Whatsapp  *string
	College   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is the append-only record of one service or plan payment.
type Transaction struct {
	ID         string
	PaymentID  string
	OrderID    string
	Amount     float64
	Status     string
	CustomerID string
	PlanID     *string
	CreatedAt  time.Time
}

// Transaction statuses written by the fulfillment pipeline.
const (
	TransactionStatusCaptured = "captured"
	TransactionStatusRefunded = "refunded"
)

// ShopOrder is the header row for a physical-goods purchase.
type ShopOrder struct {
	ID              string
	OrderID         string
	PaymentID       string
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	ShippingAddress string
	ShippingCity    string
	ShippingPincode string
	TotalAmount     float64
	OrderStatus     string
	PaymentStatus   string
	CreatedAt       time.Time
}

// ShopOrderItem is one purchased line belonging to a ShopOrder.
type ShopOrderItem struct {
	OrderID      string
	ProductID    string
	ProductName  string
	ProductPrice float64
	Quantity     int
	Subtotal     float64
}

// Product carries the fields the pipeline reads; stock is mutated only
// through the guarded decrement.
type Product struct {
	ID    string
	Name  string
	Stock int
}

// Plan is a purchasable course or subscription plan.
type Plan struct {
	ID   string
	Name string
}

// OrderIssue records a non-aborting problem observed while fulfilling an
// order, most importantly an inventory shortfall, so operations can query it
// instead of scraping logs.
type OrderIssue struct {
	ID        string
	OrderID   string
	PaymentID string
	ProductID string
	IssueType string
	Detail    string
	CreatedAt time.Time
}

// IssueTypeInsufficientStock marks a line whose guarded decrement was refused.
const IssueTypeInsufficientStock = "insufficient_stock"
