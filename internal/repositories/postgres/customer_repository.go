package postgres

import (
	"context"
	"fmt"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
	"github.com/zecurx/api/internal/repositories"
)

// CustomerRepository implements repositories.CustomerRepository on Postgres.
type CustomerRepository struct {
	db postgres.Querier
}

// NewCustomerRepository constructs the repository.
func NewCustomerRepository(db postgres.Querier) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const upsertCustomerSQL = `
INSERT INTO customers (id, email, name, phone, whatsapp, college, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (email) DO UPDATE SET
    name       = COALESCE(EXCLUDED.name, customers.name),
    phone      = COALESCE(EXCLUDED.phone, customers.phone),
    whatsapp   = COALESCE(EXCLUDED.whatsapp, customers.whatsapp),
    college    = COALESCE(EXCLUDED.college, customers.college),
    updated_at = now()
RETURNING id, email, name, phone, whatsapp, college, created_at, updated_at`

// Upsert inserts the customer or merges non-null fields into the existing row.
// The COALESCE merge guarantees a populated column is never replaced by null,
// making replays and partial payloads order-independent.
func (r *CustomerRepository) Upsert(ctx context.Context, req repositories.CustomerUpsert) (domain.Customer, error) {
	row := r.db.QueryRow(ctx, upsertCustomerSQL,
		req.ID, req.Email, req.Name, req.Phone, req.Whatsapp, req.College)

	var customer domain.Customer
	err := row.Scan(
		&customer.ID,
		&customer.Email,
		&customer.Name,
		&customer.Phone,
		&customer.Whatsapp,
		&customer.College,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("customers: upsert %s: %w", req.Email, err)
	}
	return customer, nil
}
