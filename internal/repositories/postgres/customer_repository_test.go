package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zecurx/api/internal/repositories"
)

func strPtr(s string) *string { return &s }

func TestUpsertMergesWithCoalesce(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	q := &scriptQuerier{results: []stubResult{{values: []any{
		"cust_1", "buyer@example.com", strPtr("Asha Rao"), strPtr("9876543210"),
		(*string)(nil), strPtr("NIT Trichy"), now, now,
	}}}}
	repo := NewCustomerRepository(q)

	customer, err := repo.Upsert(context.Background(), repositories.CustomerUpsert{
		ID:      "cust_new",
		Email:   "buyer@example.com",
		Name:    strPtr("Asha Rao"),
		Phone:   strPtr("9876543210"),
		College: strPtr("NIT Trichy"),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(q.calls) != 1 {
		t.Fatalf("statements = %d, want 1", len(q.calls))
	}
	call := q.calls[0]
	if !strings.Contains(call.sql, "ON CONFLICT (email) DO UPDATE") {
		t.Errorf("statement lacks the email conflict merge: %s", call.sql)
	}
	for _, column := range []string{"name", "phone", "whatsapp", "college"} {
		coalesce := "COALESCE(EXCLUDED." + column + ", customers." + column + ")"
		if !strings.Contains(call.sql, coalesce) {
			t.Errorf("statement lacks %s", coalesce)
		}
	}
	if strings.Contains(call.sql, "COALESCE(EXCLUDED.email") {
		t.Error("the conflict key must never be merged")
	}

	if len(call.args) != 6 {
		t.Fatalf("args = %d, want 6", len(call.args))
	}
	if call.args[0] != "cust_new" || call.args[1] != "buyer@example.com" {
		t.Errorf("identity args = %v", call.args[:2])
	}
	if whatsapp, ok := call.args[4].(*string); !ok || whatsapp != nil {
		t.Errorf("absent whatsapp must travel as a nil pointer, got %v", call.args[4])
	}

	if customer.ID != "cust_1" {
		t.Errorf("returned id = %q, want the stored row's id", customer.ID)
	}
	if customer.Whatsapp != nil {
		t.Error("whatsapp must stay unset")
	}
	if customer.College == nil || *customer.College != "NIT Trichy" {
		t.Errorf("college = %v", customer.College)
	}
}

func TestUpsertPropagatesScanError(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	q := &scriptQuerier{results: []stubResult{{err: storeErr}}}
	repo := NewCustomerRepository(q)

	_, err := repo.Upsert(context.Background(), repositories.CustomerUpsert{
		ID:    "cust_new",
		Email: "buyer@example.com",
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
