package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/postgres"
	"github.com/zecurx/api/internal/repositories"
)

// PlanRepository implements repositories.PlanRepository on Postgres.
type PlanRepository struct {
	db postgres.Querier
}

// NewPlanRepository constructs the repository.
func NewPlanRepository(db postgres.Querier) *PlanRepository {
	return &PlanRepository{db: db}
}

const findPlanByNameSQL = `
SELECT id, name FROM plans WHERE lower(name) = lower($1)`

// FindByName resolves a plan by its display name, case-insensitively.
func (r *PlanRepository) FindByName(ctx context.Context, name string) (domain.Plan, error) {
	var plan domain.Plan
	err := r.db.QueryRow(ctx, findPlanByNameSQL, name).Scan(&plan.ID, &plan.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Plan{}, fmt.Errorf("%w: plan %q", repositories.ErrNotFound, name)
		}
		return domain.Plan{}, fmt.Errorf("plans: find by name %q: %w", name, err)
	}
	return plan, nil
}
