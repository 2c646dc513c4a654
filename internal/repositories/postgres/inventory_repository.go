package postgres

import (
	"context"
	"fmt"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
	"github.com/zecurx/api/internal/repositories"
)

// InventoryRepository implements repositories.InventoryRepository on Postgres.
type InventoryRepository struct {
	db postgres.Querier
}

// NewInventoryRepository constructs the repository.
func NewInventoryRepository(db postgres.Querier) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const decrementStockSQL = `
UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

// Decrement applies the guarded conditional update. The precondition and the
// mutation are one statement, so concurrent purchases of the last units race
// at the store and exactly one wins; no application-level lock exists.
func (r *InventoryRepository) Decrement(ctx context.Context, productID string, quantity int) error {
	return decrementStock(ctx, r.db, productID, quantity)
}

func decrementStock(ctx context.Context, q postgres.Querier, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("inventory: quantity must be positive, got %d", quantity)
	}

	tag, err := q.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: decrement %s by %d: %w", productID, quantity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s quantity %d", repositories.ErrInsufficientStock, productID, quantity)
	}
	return nil
}

const availabilitySQL = `
SELECT id, name, stock FROM products WHERE id::text = ANY($1)`

// Availability reports current stock for the given product ids. Products the
// store does not know are simply absent from the result.
func (r *InventoryRepository) Availability(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, availabilitySQL, productIDs)
	if err != nil {
		return nil, fmt.Errorf("inventory: availability: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock); err != nil {
			return nil, fmt.Errorf("inventory: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: availability rows: %w", err)
	}
	return products, nil
}
