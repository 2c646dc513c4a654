package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/payments"
	"github.com/zecurx/api/internal/platform/config"
	"github.com/zecurx/api/internal/repositories"
)

const testSecret = "test_secret"

func signConfirmation(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type stubProcessor struct {
	order   payments.Order
	err     error
	fetched []string
}

func (s *stubProcessor) FetchOrder(_ context.Context, orderID string) (payments.Order, error) {
	s.fetched = append(s.fetched, orderID)
	if s.err != nil {
		return payments.Order{}, s.err
	}
	return s.order, nil
}

type stubCustomers struct {
	err     error
	upserts []repositories.CustomerUpsert
}

func (s *stubCustomers) Upsert(_ context.Context, req repositories.CustomerUpsert) (domain.Customer, error) {
	s.upserts = append(s.upserts, req)
	if s.err != nil {
		return domain.Customer{}, s.err
	}
	return domain.Customer{ID: req.ID, Email: req.Email}, nil
}

type stubShopOrders struct {
	outcome repositories.ShopOrderOutcome
	err     error
	records []repositories.ShopOrderRecord
}

func (s *stubShopOrders) Record(_ context.Context, rec repositories.ShopOrderRecord) (repositories.ShopOrderOutcome, error) {
	s.records = append(s.records, rec)
	if s.err != nil {
		return repositories.ShopOrderOutcome{}, s.err
	}
	outcome := s.outcome
	if outcome.OrderID == "" {
		outcome.OrderID = rec.Order.ID
	}
	return outcome, nil
}

func (s *stubShopOrders) ListByEmail(context.Context, string) ([]repositories.ShopOrderWithItems, error) {
	return nil, nil
}

type stubTransactions struct {
	err       error
	created   bool
	inserts   []domain.Transaction
	refunded  []string
	refundErr error
}

func (s *stubTransactions) Insert(_ context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	s.inserts = append(s.inserts, tx)
	if s.err != nil {
		return domain.Transaction{}, false, s.err
	}
	return tx, s.created, nil
}

func (s *stubTransactions) MarkRefunded(_ context.Context, paymentID string) error {
	s.refunded = append(s.refunded, paymentID)
	return s.refundErr
}

type stubPlans struct {
	plan    domain.Plan
	err     error
	lookups []string
}

func (s *stubPlans) FindByName(_ context.Context, name string) (domain.Plan, error) {
	s.lookups = append(s.lookups, name)
	if s.err != nil {
		return domain.Plan{}, s.err
	}
	return s.plan, nil
}

type stubEmail struct {
	err  error
	sent []PurchaseEmail
}

func (s *stubEmail) SendPurchaseConfirmation(_ context.Context, email PurchaseEmail) error {
	s.sent = append(s.sent, email)
	return s.err
}

type stubExporter struct {
	err  error
	rows []PurchaseRecord
}

func (s *stubExporter) ExportPurchase(_ context.Context, record PurchaseRecord) error {
	s.rows = append(s.rows, record)
	return s.err
}

type serviceFixture struct {
	processor    *stubProcessor
	customers    *stubCustomers
	shopOrders   *stubShopOrders
	transactions *stubTransactions
	plans        *stubPlans
	email        *stubEmail
	exporter     *stubExporter
	service      FulfillmentService
}

func newServiceFixture(t *testing.T, mutate func(deps *FulfillmentServiceDeps)) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		processor:    &stubProcessor{},
		customers:    &stubCustomers{},
		shopOrders:   &stubShopOrders{},
		transactions: &stubTransactions{created: true},
		plans:        &stubPlans{err: repositories.ErrNotFound},
		email:        &stubEmail{},
		exporter:     &stubExporter{},
	}

	seq := 0
	deps := FulfillmentServiceDeps{
		Processor:    f.processor,
		Customers:    f.customers,
		ShopOrders:   f.shopOrders,
		Transactions: f.transactions,
		Plans:        f.plans,
		Email:        f.email,
		Exporter:     f.exporter,
		Config:       config.ProcessorConfig{KeySecret: testSecret, DevModeAmount: 1},
		IDGenerator: func() string {
			seq++
			return "id_" + strconv.Itoa(seq)
		},
	}
	if mutate != nil {
		mutate(&deps)
	}

	svc, err := NewFulfillmentService(deps)
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}
	f.service = svc
	return f
}

func serviceConfirmCommand(orderID, paymentID string) ConfirmPaymentCommand {
	return ConfirmPaymentCommand{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signConfirmation(orderID, paymentID),
	}
}

func TestConfirmPaymentServicePurchase(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_1",
		AmountPaise: 49900,
		Currency:    "INR",
		Status:      "paid",
		Notes: domain.NotesMap{
			"email":    "  Buyer@Example.COM ",
			"name":     "Asha Rao",
			"mobile":   "+91 98765 43210",
			"college":  "NIT Trichy",
			"itemName": "Web Security Bootcamp",
		},
	}
	f.plans.err = nil
	f.plans.plan = domain.Plan{ID: "plan_ws", Name: "Web Security Bootcamp"}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeServiceFulfilled)
	}
	if result.AlreadyProcessed {
		t.Fatal("fresh payment reported as already processed")
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	if len(f.customers.upserts) != 1 {
		t.Fatalf("customer upserts = %d, want 1", len(f.customers.upserts))
	}
	upsert := f.customers.upserts[0]
	if upsert.Email != "buyer@example.com" {
		t.Errorf("upsert email = %q, want normalized lowercase", upsert.Email)
	}
	if upsert.Name == nil || *upsert.Name != "Asha Rao" {
		t.Errorf("upsert name = %v, want Asha Rao", upsert.Name)
	}

	if len(f.transactions.inserts) != 1 {
		t.Fatalf("transaction inserts = %d, want 1", len(f.transactions.inserts))
	}
	tx := f.transactions.inserts[0]
	if tx.Status != domain.TransactionStatusCaptured {
		t.Errorf("transaction status = %q, want captured", tx.Status)
	}
	if tx.Amount != 499 {
		t.Errorf("transaction amount = %v, want 499 rupees", tx.Amount)
	}
	if tx.PlanID == nil || *tx.PlanID != "plan_ws" {
		t.Errorf("transaction plan = %v, want plan_ws", tx.PlanID)
	}
	if tx.CustomerID != upsert.ID {
		t.Errorf("transaction customer = %q, want %q", tx.CustomerID, upsert.ID)
	}

	if len(f.email.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.email.sent))
	}
	if f.email.sent[0].ItemName != "Web Security Bootcamp" {
		t.Errorf("email item = %q", f.email.sent[0].ItemName)
	}
	if len(f.exporter.rows) != 0 {
		t.Error("a non-internship purchase must not reach the roster")
	}
	if len(f.shopOrders.records) != 0 {
		t.Error("service purchase must not record a shop order")
	}
}

func TestConfirmPaymentShopOrder(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_2",
		AmountPaise: 159800,
		Notes: domain.NotesMap{
			"email":     "shopper@example.com",
			"name":      "Dev Patel",
			"mobile":    "9876543210",
			"orderType": "shop",
			"address":   "12 MG Road",
			"city":      "Bengaluru",
			"pincode":   "560001",
			"items":     `[{"productId":"prod_1","name":"Pen Drive","price":"799","quantity":2}]`,
		},
	}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_2", "pay_2"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeShopFulfilled {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeShopFulfilled)
	}
	if result.ShopOrderID == "" {
		t.Error("shop order id missing from result")
	}

	if len(f.shopOrders.records) != 1 {
		t.Fatalf("shop order records = %d, want 1", len(f.shopOrders.records))
	}
	rec := f.shopOrders.records[0]
	if rec.Order.PaymentID != "pay_2" || rec.Order.OrderID != "order_2" {
		t.Errorf("order identifiers = %q/%q", rec.Order.PaymentID, rec.Order.OrderID)
	}
	if rec.Order.TotalAmount != 1598 {
		t.Errorf("total = %v, want 1598 rupees", rec.Order.TotalAmount)
	}
	if rec.Order.OrderStatus != "confirmed" || rec.Order.PaymentStatus != "paid" {
		t.Errorf("statuses = %q/%q", rec.Order.OrderStatus, rec.Order.PaymentStatus)
	}

	wantItems := []domain.ShopOrderItem{{
		ProductID:    "prod_1",
		ProductName:  "Pen Drive",
		ProductPrice: 799,
		Quantity:     2,
		Subtotal:     1598,
	}}
	if diff := cmp.Diff(wantItems, rec.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	if len(f.customers.upserts) != 0 {
		t.Error("shop path must not touch the customer registry")
	}
	if len(f.transactions.inserts) != 0 {
		t.Error("shop path must not insert a service transaction")
	}
	if len(f.email.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.email.sent))
	}
}

func TestConfirmPaymentNoFulfillmentContext(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{ID: "order_3", AmountPaise: 100, Notes: domain.NotesMap{}}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_3", "pay_3"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeSkipped)
	}
	if len(f.customers.upserts)+len(f.shopOrders.records)+len(f.transactions.inserts)+len(f.email.sent) != 0 {
		t.Error("skip outcome must write nothing and send nothing")
	}
}

func TestConfirmPaymentInvalidSignature(t *testing.T) {
	f := newServiceFixture(t, nil)

	cmd := serviceConfirmCommand("order_4", "pay_4")
	cmd.Signature = signConfirmation("order_4", "pay_tampered")

	_, err := f.service.ConfirmPayment(context.Background(), cmd)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if len(f.processor.fetched) != 0 {
		t.Error("metadata fetched before signature verification passed")
	}
	if len(f.customers.upserts)+len(f.shopOrders.records)+len(f.transactions.inserts) != 0 {
		t.Error("rejected payment must write nothing")
	}
}

func TestConfirmPaymentMissingFields(t *testing.T) {
	tests := []struct {
		name string
		cmd  ConfirmPaymentCommand
	}{
		{"no order id", ConfirmPaymentCommand{PaymentID: "pay_1", Signature: "sig"}},
		{"no payment id", ConfirmPaymentCommand{OrderID: "order_1", Signature: "sig"}},
		{"no signature", ConfirmPaymentCommand{OrderID: "order_1", PaymentID: "pay_1"}},
		{"whitespace only", ConfirmPaymentCommand{OrderID: "  ", PaymentID: "pay_1", Signature: "sig"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, nil)
			_, err := f.service.ConfirmPayment(context.Background(), tt.cmd)
			if !errors.Is(err, ErrMissingFields) {
				t.Fatalf("err = %v, want ErrMissingFields", err)
			}
		})
	}
}

func TestConfirmPaymentSecretNotConfigured(t *testing.T) {
	f := newServiceFixture(t, func(deps *FulfillmentServiceDeps) {
		deps.Config.KeySecret = ""
	})

	_, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_1", "pay_1"))
	if !errors.Is(err, ErrSecretNotConfigured) {
		t.Fatalf("err = %v, want ErrSecretNotConfigured", err)
	}
}

func TestConfirmPaymentOrderLookupFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.err = payments.ErrProcessorUnavailable

	_, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_5", "pay_5"))
	if !errors.Is(err, ErrOrderLookup) {
		t.Fatalf("err = %v, want ErrOrderLookup", err)
	}
	if !errors.Is(err, payments.ErrProcessorUnavailable) {
		t.Fatalf("err = %v, want wrapped processor cause", err)
	}
}

func TestConfirmPaymentDevBypassRequiresServerToggle(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		DevMode:     true,
		DevMetadata: domain.NotesMap{"email": "dev@example.com"},
	})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields when server toggle is off", err)
	}
	if len(f.transactions.inserts) != 0 {
		t.Error("client-only dev mode must not fulfill")
	}
}

func TestConfirmPaymentDevBypass(t *testing.T) {
	f := newServiceFixture(t, func(deps *FulfillmentServiceDeps) {
		deps.Config.AllowDevBypass = true
		deps.Config.DevModeAmount = 1
	})

	result, err := f.service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		DevMode: true,
		DevMetadata: domain.NotesMap{
			"email":    "dev@example.com",
			"itemName": "Trial Plan",
		},
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(f.processor.fetched) != 0 {
		t.Error("dev bypass must not call the processor")
	}
	if len(f.transactions.inserts) != 1 || f.transactions.inserts[0].Amount != 1 {
		t.Fatalf("dev transaction = %+v, want amount 1", f.transactions.inserts)
	}
}

func TestConfirmPaymentDevBypassWithoutMetadata(t *testing.T) {
	f := newServiceFixture(t, func(deps *FulfillmentServiceDeps) {
		deps.Config.AllowDevBypass = true
	})

	_, err := f.service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{DevMode: true})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestConfirmPaymentInvalidEmail(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:    "order_6",
		Notes: domain.NotesMap{"email": "not-an-email"},
	}

	_, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_6", "pay_6"))
	if !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
}

func TestConfirmPaymentShopPersistFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_7",
		AmountPaise: 79900,
		Notes: domain.NotesMap{
			"email":     "shopper@example.com",
			"orderType": "shop",
			"items":     `[{"productId":"prod_1","name":"Pen Drive","price":799}]`,
		},
	}
	f.shopOrders.err = errors.New("connection reset")

	_, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_7", "pay_7"))
	if !errors.Is(err, ErrShopOrderPersist) {
		t.Fatalf("err = %v, want ErrShopOrderPersist", err)
	}
	if len(f.email.sent) != 0 {
		t.Error("no email after a failed persist")
	}
}

func TestConfirmPaymentMalformedItemsIsPersistFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID: "order_8",
		Notes: domain.NotesMap{
			"email":     "shopper@example.com",
			"orderType": "shop",
			"items":     `[{"name":"no id or price"}]`,
		},
	}

	_, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_8", "pay_8"))
	if !errors.Is(err, ErrShopOrderPersist) {
		t.Fatalf("err = %v, want ErrShopOrderPersist", err)
	}
	if !errors.Is(err, domain.ErrInvalidItems) {
		t.Fatalf("err = %v, want wrapped ErrInvalidItems", err)
	}
}

func TestConfirmPaymentInventoryShortfallIsWarning(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_9",
		AmountPaise: 79900,
		Notes: domain.NotesMap{
			"email":     "shopper@example.com",
			"orderType": "shop",
			"items":     `[{"productId":"prod_1","name":"Pen Drive","price":799}]`,
		},
	}
	f.shopOrders.outcome = repositories.ShopOrderOutcome{
		OrderID: "so_1",
		Shortfalls: []domain.OrderIssue{{
			ProductID: "prod_1",
			IssueType: domain.IssueTypeInsufficientStock,
			Detail:    "prod_1 short by 1",
		}},
	}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_9", "pay_9"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeShopFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want the shortfall", result.Warnings)
	}
}

func TestConfirmPaymentCustomerUpsertSoftFail(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_10",
		AmountPaise: 49900,
		Notes:       domain.NotesMap{"email": "buyer@example.com", "itemName": "Plan"},
	}
	f.customers.err = errors.New("deadlock detected")

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_10", "pay_10"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want the upsert failure", result.Warnings)
	}
	if len(f.transactions.inserts) != 0 {
		t.Error("no transaction without a customer row to anchor it")
	}
}

func TestConfirmPaymentTransactionInsertSoftFail(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_11",
		AmountPaise: 49900,
		Notes:       domain.NotesMap{"email": "buyer@example.com", "itemName": "Plan"},
	}
	f.transactions.err = errors.New("unique_violation on id")

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_11", "pay_11"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want the insert failure", result.Warnings)
	}
}

func TestConfirmPaymentDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_12",
		AmountPaise: 49900,
		Notes:       domain.NotesMap{"email": "buyer@example.com", "itemName": "Cybersecurity Internship"},
	}
	f.transactions.created = false

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_12", "pay_12"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("replay not reported as already processed")
	}
	if len(f.email.sent) != 0 {
		t.Error("replay must not resend the purchase email")
	}
	if len(f.exporter.rows) != 0 {
		t.Error("replay must not append another roster row")
	}
}

func TestConfirmPaymentEmailFailureIsWarning(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_13",
		AmountPaise: 49900,
		Notes:       domain.NotesMap{"email": "buyer@example.com", "itemName": "Plan"},
	}
	f.email.err = errors.New("smtp relay down")

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_13", "pay_13"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want the email failure", result.Warnings)
	}
	if len(f.transactions.inserts) != 1 {
		t.Error("store mutations must land before the email attempt")
	}
}

func TestConfirmPaymentInternshipPurchaseExported(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_20",
		AmountPaise: 149900,
		Notes: domain.NotesMap{
			"email":    "intern@example.com",
			"name":     "Ravi Kumar",
			"mobile":   "9876543210",
			"itemName": "Cybersecurity INTERNSHIP Program",
		},
	}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_20", "pay_20"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if len(f.exporter.rows) != 1 {
		t.Fatalf("roster rows = %d, want 1", len(f.exporter.rows))
	}

	row := f.exporter.rows[0]
	if row.Email != "intern@example.com" || row.PaymentID != "pay_20" {
		t.Errorf("row identity = %q/%q", row.Email, row.PaymentID)
	}
	if row.ItemName != "Cybersecurity INTERNSHIP Program" {
		t.Errorf("row item = %q", row.ItemName)
	}
	if row.Amount != 1499 {
		t.Errorf("row amount = %v, want 1499 rupees", row.Amount)
	}
	if row.Date.IsZero() {
		t.Error("row date must be stamped")
	}
	if len(f.email.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1 alongside the export", len(f.email.sent))
	}
}

func TestConfirmPaymentExportFailureIsWarning(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_21",
		AmountPaise: 149900,
		Notes:       domain.NotesMap{"email": "intern@example.com", "itemName": "Summer Internship"},
	}
	f.exporter.err = errors.New("sheets quota exhausted")

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_21", "pay_21"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(result.Warnings) != 1 || !strings.HasPrefix(result.Warnings[0], "purchase_export: ") {
		t.Fatalf("warnings = %v, want the export failure", result.Warnings)
	}
	if len(f.transactions.inserts) != 1 {
		t.Error("store mutations must land before the export attempt")
	}
}

func TestConfirmPaymentPlanFallbackByName(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.processor.order = payments.Order{
		ID:          "order_14",
		AmountPaise: 49900,
		Notes:       domain.NotesMap{"email": "buyer@example.com", "itemName": "Unknown Course"},
	}

	result, err := f.service.ConfirmPayment(context.Background(), serviceConfirmCommand("order_14", "pay_14"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if got := f.plans.lookups; len(got) != 1 || got[0] != "Unknown Course" {
		t.Fatalf("plan lookups = %v", got)
	}
	if f.transactions.inserts[0].PlanID != nil {
		t.Error("unresolvable plan must leave the transaction unlinked")
	}
}

func TestFulfillCaptured(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.service.FulfillCaptured(context.Background(), CapturedPaymentCommand{
		PaymentID:    "pay_hook",
		OrderID:      "order_hook",
		AmountRupees: 250,
		Notes:        domain.NotesMap{"email": "buyer@example.com", "itemName": "Plan"},
	})
	if err != nil {
		t.Fatalf("FulfillCaptured: %v", err)
	}
	if result.Outcome != OutcomeServiceFulfilled {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(f.processor.fetched) != 0 {
		t.Error("webhook payload is authoritative, no processor fetch expected")
	}
	if f.transactions.inserts[0].Amount != 250 {
		t.Errorf("amount = %v, want 250", f.transactions.inserts[0].Amount)
	}
}

func TestFulfillCapturedMissingPaymentID(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.FulfillCaptured(context.Background(), CapturedPaymentCommand{OrderID: "order_x"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestRecordRefund(t *testing.T) {
	f := newServiceFixture(t, nil)

	if err := f.service.RecordRefund(context.Background(), " pay_r "); err != nil {
		t.Fatalf("RecordRefund: %v", err)
	}
	if diff := cmp.Diff([]string{"pay_r"}, f.transactions.refunded); diff != "" {
		t.Errorf("refunded mismatch (-want +got):\n%s", diff)
	}

	if err := f.service.RecordRefund(context.Background(), "  "); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestNewFulfillmentServiceValidation(t *testing.T) {
	base := func() FulfillmentServiceDeps {
		return FulfillmentServiceDeps{
			Processor:    &stubProcessor{},
			Customers:    &stubCustomers{},
			ShopOrders:   &stubShopOrders{},
			Transactions: &stubTransactions{},
		}
	}

	tests := []struct {
		name   string
		mutate func(deps *FulfillmentServiceDeps)
	}{
		{"missing customers", func(d *FulfillmentServiceDeps) { d.Customers = nil }},
		{"missing shop orders", func(d *FulfillmentServiceDeps) { d.ShopOrders = nil }},
		{"missing transactions", func(d *FulfillmentServiceDeps) { d.Transactions = nil }},
		{"missing processor", func(d *FulfillmentServiceDeps) { d.Processor = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base()
			tt.mutate(&deps)
			if _, err := NewFulfillmentService(deps); err == nil {
				t.Fatal("expected construction error")
			}
		})
	}

	t.Run("processor optional under dev bypass", func(t *testing.T) {
		deps := base()
		deps.Processor = nil
		deps.Config.AllowDevBypass = true
		if _, err := NewFulfillmentService(deps); err != nil {
			t.Fatalf("NewFulfillmentService: %v", err)
		}
	})
}
