package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
	"github.com/zecurx/api/internal/repositories"
)

// DB is the connection surface the shop order repository needs: plain queries
// plus the ability to open a transaction.
type DB interface {
	postgres.Querier
	postgres.TxBeginner
}

// ShopOrderRepository implements repositories.ShopOrderRepository on Postgres.
type ShopOrderRepository struct {
	db         DB
	newIssueID func() string
}

// NewShopOrderRepository constructs the repository.
func NewShopOrderRepository(db DB) *ShopOrderRepository {
	return &ShopOrderRepository{
		db: db,
		newIssueID: func() string {
			return ulid.Make().String()
		},
	}
}

const insertShopOrderSQL = `
INSERT INTO shop_orders (
    id, order_id, payment_id,
    customer_email, customer_name, customer_phone,
    shipping_address, shipping_city, shipping_pincode,
    total_amount, order_status, payment_status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (payment_id) DO NOTHING
RETURNING id`

const selectShopOrderIDByPaymentSQL = `
SELECT id FROM shop_orders WHERE payment_id = $1`

const insertShopOrderItemSQL = `
INSERT INTO shop_order_items (order_id, product_id, product_name, product_price, quantity, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)`

const insertOrderIssueSQL = `
INSERT INTO order_issues (id, order_id, payment_id, product_id, issue_type, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())`

// Record writes the order header, its lines, and the per-line guarded stock
// decrements in one transaction. A shortfall does not abort the transaction:
// the order row survives and an order_issues row records what could not be
// decremented. A payment id that already has an order is a no-op replay.
func (r *ShopOrderRepository) Record(ctx context.Context, rec repositories.ShopOrderRecord) (repositories.ShopOrderOutcome, error) {
	var outcome repositories.ShopOrderOutcome

	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		order := rec.Order
		row := tx.QueryRow(ctx, insertShopOrderSQL,
			order.ID, order.OrderID, order.PaymentID,
			order.CustomerEmail, order.CustomerName, order.CustomerPhone,
			order.ShippingAddress, order.ShippingCity, order.ShippingPincode,
			order.TotalAmount, order.OrderStatus, order.PaymentStatus,
		)

		var insertedID string
		if err := row.Scan(&insertedID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("shop orders: insert header: %w", err)
			}
			// Duplicate delivery: an earlier request already recorded this
			// payment. Return the stored id and write nothing else.
			if err := tx.QueryRow(ctx, selectShopOrderIDByPaymentSQL, order.PaymentID).Scan(&insertedID); err != nil {
				return fmt.Errorf("shop orders: lookup existing order for payment %s: %w", order.PaymentID, err)
			}
			outcome = repositories.ShopOrderOutcome{OrderID: insertedID, AlreadyProcessed: true}
			return nil
		}

		for _, item := range rec.Items {
			if _, err := tx.Exec(ctx, insertShopOrderItemSQL,
				insertedID, item.ProductID, item.ProductName, item.ProductPrice, item.Quantity, item.Subtotal,
			); err != nil {
				return fmt.Errorf("shop orders: insert item %s: %w", item.ProductID, err)
			}

			err := decrementStock(ctx, tx, item.ProductID, item.Quantity)
			if err == nil {
				continue
			}
			if !errors.Is(err, repositories.ErrInsufficientStock) {
				return err
			}

			issue := domain.OrderIssue{
				ID:        r.newIssueID(),
				OrderID:   insertedID,
				PaymentID: order.PaymentID,
				ProductID: item.ProductID,
				IssueType: domain.IssueTypeInsufficientStock,
				Detail:    fmt.Sprintf("requested %d of product %s", item.Quantity, item.ProductID),
				CreatedAt: time.Now().UTC(),
			}
			if _, err := tx.Exec(ctx, insertOrderIssueSQL,
				issue.ID, issue.OrderID, issue.PaymentID, issue.ProductID, issue.IssueType, issue.Detail,
			); err != nil {
				return fmt.Errorf("shop orders: insert issue for %s: %w", item.ProductID, err)
			}
			outcome.Shortfalls = append(outcome.Shortfalls, issue)
		}

		outcome.OrderID = insertedID
		return nil
	})
	if err != nil {
		return repositories.ShopOrderOutcome{}, err
	}
	return outcome, nil
}

const listShopOrdersByEmailSQL = `
SELECT id, order_id, payment_id,
       customer_email, customer_name, customer_phone,
       shipping_address, shipping_city, shipping_pincode,
       total_amount, order_status, payment_status, created_at
FROM shop_orders
WHERE customer_email = $1
ORDER BY created_at DESC`

const listShopOrderItemsSQL = `
SELECT order_id, product_id, product_name, product_price, quantity, subtotal
FROM shop_order_items
WHERE order_id = ANY($1)`

// ListByEmail returns a customer's orders newest first, with their items.
func (r *ShopOrderRepository) ListByEmail(ctx context.Context, email string) ([]repositories.ShopOrderWithItems, error) {
	rows, err := r.db.Query(ctx, listShopOrdersByEmailSQL, email)
	if err != nil {
		return nil, fmt.Errorf("shop orders: list by email: %w", err)
	}
	defer rows.Close()

	var orders []repositories.ShopOrderWithItems
	index := make(map[string]int)
	var orderIDs []string
	for rows.Next() {
		var o domain.ShopOrder
		if err := rows.Scan(
			&o.ID, &o.OrderID, &o.PaymentID,
			&o.CustomerEmail, &o.CustomerName, &o.CustomerPhone,
			&o.ShippingAddress, &o.ShippingCity, &o.ShippingPincode,
			&o.TotalAmount, &o.OrderStatus, &o.PaymentStatus, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("shop orders: scan order: %w", err)
		}
		index[o.ID] = len(orders)
		orderIDs = append(orderIDs, o.ID)
		orders = append(orders, repositories.ShopOrderWithItems{Order: o})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shop orders: list rows: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	itemRows, err := r.db.Query(ctx, listShopOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("shop orders: list items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.ShopOrderItem
		if err := itemRows.Scan(
			&item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductPrice, &item.Quantity, &item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("shop orders: scan item: %w", err)
		}
		if pos, ok := index[item.OrderID]; ok {
			orders[pos].Items = append(orders[pos].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("shop orders: item rows: %w", err)
	}
	return orders, nil
}
