package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/repositories"
)

func TestDecrementGuardAndMutationAreOneStatement(t *testing.T) {
	q := &scriptQuerier{results: []stubResult{{tag: pgconn.NewCommandTag("UPDATE 1")}}}
	repo := NewInventoryRepository(q)

	if err := repo.Decrement(context.Background(), "prod_1", 2); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	if len(q.calls) != 1 {
		t.Fatalf("statements = %d, want 1", len(q.calls))
	}
	call := q.calls[0]
	if !strings.Contains(call.sql, "stock = stock - $2") {
		t.Errorf("statement lacks the decrement: %s", call.sql)
	}
	if !strings.Contains(call.sql, "stock >= $2") {
		t.Errorf("statement lacks the stock guard: %s", call.sql)
	}
	if len(call.args) != 2 || call.args[0] != "prod_1" || call.args[1] != 2 {
		t.Errorf("args = %v, want [prod_1 2]", call.args)
	}
}

func TestDecrementZeroRowsIsInsufficientStock(t *testing.T) {
	q := &scriptQuerier{results: []stubResult{{tag: pgconn.NewCommandTag("UPDATE 0")}}}
	repo := NewInventoryRepository(q)

	err := repo.Decrement(context.Background(), "prod_1", 5)
	if !errors.Is(err, repositories.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	q := &scriptQuerier{}
	repo := NewInventoryRepository(q)

	for _, quantity := range []int{0, -3} {
		if err := repo.Decrement(context.Background(), "prod_1", quantity); err == nil {
			t.Fatalf("quantity %d accepted", quantity)
		}
	}
	if len(q.calls) != 0 {
		t.Fatal("invalid quantities must not reach the store")
	}
}

func TestDecrementPropagatesExecError(t *testing.T) {
	storeErr := errors.New("connection reset")
	q := &scriptQuerier{results: []stubResult{{err: storeErr}}}
	repo := NewInventoryRepository(q)

	err := repo.Decrement(context.Background(), "prod_1", 1)
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if errors.Is(err, repositories.ErrInsufficientStock) {
		t.Fatal("a store error must not masquerade as a shortfall")
	}
}

func TestAvailabilityReportsKnownProducts(t *testing.T) {
	q := &scriptQuerier{results: []stubResult{{rows: &stubRows{rows: [][]any{
		{"prod_1", "Badge", 4},
		{"prod_2", "Sticker Pack", 0},
	}}}}}
	repo := NewInventoryRepository(q)

	products, err := repo.Availability(context.Background(), []string{"prod_1", "prod_2", "prod_missing"})
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	want := []domain.Product{
		{ID: "prod_1", Name: "Badge", Stock: 4},
		{ID: "prod_2", Name: "Sticker Pack", Stock: 0},
	}
	if len(products) != len(want) {
		t.Fatalf("products = %v, want %v", products, want)
	}
	for i := range want {
		if products[i] != want[i] {
			t.Errorf("product %d = %v, want %v", i, products[i], want[i])
		}
	}
}

func TestAvailabilityEmptyInputSkipsTheStore(t *testing.T) {
	q := &scriptQuerier{}
	repo := NewInventoryRepository(q)

	products, err := repo.Availability(context.Background(), nil)
	if err != nil || products != nil {
		t.Fatalf("got %v, %v for empty input", products, err)
	}
	if len(q.calls) != 0 {
		t.Fatal("empty input must not query the store")
	}
}
