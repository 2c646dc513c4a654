package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
)

// TransactionRepository implements repositories.TransactionRepository on Postgres.
type TransactionRepository struct {
	db postgres.Querier
}

// NewTransactionRepository constructs the repository.
func NewTransactionRepository(db postgres.Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const insertTransactionSQL = `
INSERT INTO transactions (id, payment_id, order_id, amount, status, customer_id, plan_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (payment_id) DO NOTHING
RETURNING id, payment_id, order_id, amount, status, customer_id, plan_id, created_at`

const selectTransactionByPaymentSQL = `
SELECT id, payment_id, order_id, amount, status, customer_id, plan_id, created_at
FROM transactions WHERE payment_id = $1`

// Insert writes the transaction once per payment id. On a duplicate delivery
// it returns the stored record with created=false instead of failing, which
// makes at-least-once webhook redelivery a safe no-op.
func (r *TransactionRepository) Insert(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	row := r.db.QueryRow(ctx, insertTransactionSQL,
		tx.ID, tx.PaymentID, tx.OrderID, tx.Amount, tx.Status, tx.CustomerID, tx.PlanID)

	stored, err := scanTransaction(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, false, fmt.Errorf("transactions: insert payment %s: %w", tx.PaymentID, err)
	}

	stored, err = scanTransaction(r.db.QueryRow(ctx, selectTransactionByPaymentSQL, tx.PaymentID))
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("transactions: lookup payment %s: %w", tx.PaymentID, err)
	}
	return stored, false, nil
}

const markRefundedSQL = `
UPDATE transactions SET status = $2 WHERE payment_id = $1`

// MarkRefunded records a processor refund against the original payment.
func (r *TransactionRepository) MarkRefunded(ctx context.Context, paymentID string) error {
	if _, err := r.db.Exec(ctx, markRefundedSQL, paymentID, domain.TransactionStatusRefunded); err != nil {
		return fmt.Errorf("transactions: mark refunded %s: %w", paymentID, err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.PaymentID, &tx.OrderID, &tx.Amount,
		&tx.Status, &tx.CustomerID, &tx.PlanID, &tx.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}
