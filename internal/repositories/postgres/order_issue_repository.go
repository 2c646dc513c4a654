package postgres

import (
	"context"
	"fmt"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
)

const defaultIssueListLimit = 100

// OrderIssueRepository implements repositories.OrderIssueRepository on Postgres.
type OrderIssueRepository struct {
	db postgres.Querier
}

// NewOrderIssueRepository constructs the repository.
func NewOrderIssueRepository(db postgres.Querier) *OrderIssueRepository {
	return &OrderIssueRepository{db: db}
}

const listOrderIssuesSQL = `
SELECT id, order_id, payment_id, product_id, issue_type, detail, created_at
FROM order_issues
ORDER BY created_at DESC
LIMIT $1`

// List returns the most recent fulfillment issues.
func (r *OrderIssueRepository) List(ctx context.Context, limit int) ([]domain.OrderIssue, error) {
	if limit <= 0 {
		limit = defaultIssueListLimit
	}

	rows, err := r.db.Query(ctx, listOrderIssuesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("order issues: list: %w", err)
	}
	defer rows.Close()

	var issues []domain.OrderIssue
	for rows.Next() {
		var issue domain.OrderIssue
		if err := rows.Scan(
			&issue.ID, &issue.OrderID, &issue.PaymentID,
			&issue.ProductID, &issue.IssueType, &issue.Detail, &issue.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("order issues: scan: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order issues: rows: %w", err)
	}
	return issues, nil
}
