package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/payments"
	"github.com/zecurx/api/internal/platform/config"
	"github.com/zecurx/api/internal/platform/observability"
	"github.com/zecurx/api/internal/repositories"
)

const (
	shopOrderStatusConfirmed = "confirmed"
	shopPaymentStatusPaid    = "paid"

	// internshipKeyword marks the purchases mirrored to the onboarding roster.
	internshipKeyword = "internship"
)

// FulfillmentServiceDeps bundles the collaborators required to construct the
// fulfillment service.
type FulfillmentServiceDeps struct {
	Processor    payments.Client
	Customers    repositories.CustomerRepository
	ShopOrders   repositories.ShopOrderRepository
	Transactions repositories.TransactionRepository
	Plans        repositories.PlanRepository
	Email        EmailSender
	Exporter     PurchaseExporter
	Config       config.ProcessorConfig
	IDGenerator  func() string
}

type fulfillmentService struct {
	processor    payments.Client
	customers    repositories.CustomerRepository
	shopOrders   repositories.ShopOrderRepository
	transactions repositories.TransactionRepository
	plans        repositories.PlanRepository
	email        EmailSender
	exporter     PurchaseExporter
	cfg          config.ProcessorConfig
	newID        func() string
}

// NewFulfillmentService wires dependencies into a concrete FulfillmentService.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Customers == nil {
		return nil, errors.New("fulfillment service: customer repository is required")
	}
	if deps.ShopOrders == nil {
		return nil, errors.New("fulfillment service: shop order repository is required")
	}
	if deps.Transactions == nil {
		return nil, errors.New("fulfillment service: transaction repository is required")
	}
	if deps.Processor == nil && !deps.Config.AllowDevBypass {
		return nil, errors.New("fulfillment service: processor client is required")
	}

	email := deps.Email
	if email == nil {
		email = NopEmailSender{}
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = NopPurchaseExporter{}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &fulfillmentService{
		processor:    deps.Processor,
		customers:    deps.Customers,
		shopOrders:   deps.ShopOrders,
		transactions: deps.Transactions,
		plans:        deps.Plans,
		email:        email,
		exporter:     exporter,
		cfg:          deps.Config,
		newID:        idGen,
	}, nil
}

// ConfirmPayment verifies a client-side payment confirmation and, once
// authentic, fulfills it. All authenticity checks run before any write.
func (s *fulfillmentService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (FulfillmentResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	paymentID := strings.TrimSpace(cmd.PaymentID)
	signature := strings.TrimSpace(cmd.Signature)

	// The bypass needs both the caller's request and the server-side toggle;
	// a client can never disable verification on its own.
	if cmd.DevMode && s.cfg.AllowDevBypass {
		if len(cmd.DevMetadata) == 0 {
			return FulfillmentResult{}, fmt.Errorf("%w: dev mode requires metadata", ErrMissingFields)
		}
		if paymentID == "" {
			paymentID = "dev_pay_" + s.newID()
		}
		if orderID == "" {
			orderID = "dev_order_" + s.newID()
		}
		observability.FromContext(ctx).Warn("dev-mode verification bypass in use",
			zap.String("payment_id", paymentID))
		return s.fulfill(ctx, orderID, paymentID, s.cfg.DevModeAmount, cmd.DevMetadata)
	}

	if orderID == "" || paymentID == "" || signature == "" {
		return FulfillmentResult{}, ErrMissingFields
	}
	if strings.TrimSpace(s.cfg.KeySecret) == "" {
		return FulfillmentResult{}, ErrSecretNotConfigured
	}
	if !payments.VerifyPaymentSignature(orderID, paymentID, signature, s.cfg.KeySecret) {
		return FulfillmentResult{}, ErrInvalidSignature
	}

	order, err := s.processor.FetchOrder(ctx, orderID)
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("%w: %w", ErrOrderLookup, err)
	}

	return s.fulfill(ctx, orderID, paymentID, order.AmountRupees(), order.Notes)
}

// FulfillCaptured fulfills a processor-push delivery whose webhook signature
// the handler already validated against the raw body.
func (s *fulfillmentService) FulfillCaptured(ctx context.Context, cmd CapturedPaymentCommand) (FulfillmentResult, error) {
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return FulfillmentResult{}, fmt.Errorf("%w: payment id is required", ErrMissingFields)
	}
	return s.fulfill(ctx, strings.TrimSpace(cmd.OrderID), paymentID, cmd.AmountRupees, cmd.Notes)
}

// RecordRefund marks the transaction behind a refunded payment.
func (s *fulfillmentService) RecordRefund(ctx context.Context, paymentID string) error {
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return fmt.Errorf("%w: payment id is required", ErrMissingFields)
	}
	return s.transactions.MarkRefunded(ctx, trimmed)
}

func (s *fulfillmentService) fulfill(ctx context.Context, orderID, paymentID string, amount float64, raw domain.NotesMap) (FulfillmentResult, error) {
	result := FulfillmentResult{OrderID: orderID, PaymentID: paymentID}

	notes, err := domain.RouteNotes(raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidItems) {
			// A paid goods order we cannot even parse must be visible to the
			// caller; shipping depends on this record existing.
			return FulfillmentResult{}, fmt.Errorf("%w: %w", ErrShopOrderPersist, err)
		}
		return FulfillmentResult{}, err
	}
	if notes == nil {
		result.Outcome = OutcomeSkipped
		observability.FromContext(ctx).Info("payment verified without fulfillment context",
			zap.String("payment_id", paymentID), zap.String("order_id", orderID))
		return result, nil
	}

	switch n := notes.(type) {
	case domain.GoodsNotes:
		return s.fulfillShop(ctx, result, n, amount)
	case domain.ServiceNotes:
		return s.fulfillService(ctx, result, n, amount)
	default:
		return FulfillmentResult{}, fmt.Errorf("fulfillment: unhandled notes shape %T", notes)
	}
}

func (s *fulfillmentService) fulfillShop(ctx context.Context, result FulfillmentResult, notes domain.GoodsNotes, amount float64) (FulfillmentResult, error) {
	logger := observability.FromContext(ctx)

	order := domain.ShopOrder{
		ID:              s.newID(),
		OrderID:         result.OrderID,
		PaymentID:       result.PaymentID,
		CustomerEmail:   notes.Contact.Email,
		CustomerName:    sanitizeFreeText(notes.Contact.Name, maxNameLength),
		CustomerPhone:   sanitizePhone(notes.Contact.Phone),
		ShippingAddress: sanitizeFreeText(notes.Shipping.Address, maxAddressLength),
		ShippingCity:    sanitizeFreeText(notes.Shipping.City, maxCityLength),
		ShippingPincode: sanitizeFreeText(notes.Shipping.Pincode, maxPincodeLength),
		TotalAmount:     amount,
		OrderStatus:     shopOrderStatusConfirmed,
		PaymentStatus:   shopPaymentStatusPaid,
	}

	items := make([]domain.ShopOrderItem, 0, len(notes.Items))
	for _, line := range notes.Items {
		items = append(items, domain.ShopOrderItem{
			ProductID:    line.ProductID,
			ProductName:  sanitizeFreeText(line.Name, maxNameLength),
			ProductPrice: line.Price,
			Quantity:     line.Quantity,
			Subtotal:     line.Price * float64(line.Quantity),
		})
	}

	outcome, err := s.shopOrders.Record(ctx, repositories.ShopOrderRecord{Order: order, Items: items})
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("%w: %w", ErrShopOrderPersist, err)
	}

	result.Outcome = OutcomeShopFulfilled
	result.ShopOrderID = outcome.OrderID
	result.AlreadyProcessed = outcome.AlreadyProcessed

	for _, issue := range outcome.Shortfalls {
		// A paid order we cannot ship from stock is an operational incident,
		// not a payer problem. The order_issues row keeps it queryable.
		logger.Error("inventory shortfall on paid order",
			zap.String("payment_id", result.PaymentID),
			zap.String("shop_order_id", outcome.OrderID),
			zap.String("product_id", issue.ProductID),
			zap.String("detail", issue.Detail),
		)
		result.Warnings = append(result.Warnings, "inventory: "+issue.Detail)
	}

	if !outcome.AlreadyProcessed {
		itemName := "Shop order"
		if len(items) > 0 && items[0].ProductName != "" {
			itemName = items[0].ProductName
		}
		result = s.sendPurchaseEmail(ctx, result, PurchaseEmail{
			Name:      order.CustomerName,
			Email:     order.CustomerEmail,
			ItemName:  itemName,
			Amount:    amount,
			PaymentID: result.PaymentID,
			Phone:     order.CustomerPhone,
		})
	}
	return result, nil
}

func (s *fulfillmentService) fulfillService(ctx context.Context, result FulfillmentResult, notes domain.ServiceNotes, amount float64) (FulfillmentResult, error) {
	logger := observability.FromContext(ctx)
	result.Outcome = OutcomeServiceFulfilled

	customer, err := s.customers.Upsert(ctx, repositories.CustomerUpsert{
		ID:       s.newID(),
		Email:    notes.Contact.Email,
		Name:     optionalText(notes.Contact.Name, maxNameLength),
		Phone:    optionalPhone(notes.Contact.Phone),
		Whatsapp: optionalPhone(notes.Contact.Whatsapp),
		College:  optionalText(notes.Contact.College, maxNameLength),
	})
	if err != nil {
		// The charge is already captured; an unrecorded customer is a
		// reconcilable gap, not a reason to fail the payer.
		logger.Error("customer upsert failed",
			zap.String("payment_id", result.PaymentID), zap.Error(err))
		result.Warnings = append(result.Warnings, "customer_upsert: "+err.Error())
		return result, nil
	}
	result.CustomerID = customer.ID

	tx := domain.Transaction{
		ID:         s.newID(),
		PaymentID:  result.PaymentID,
		OrderID:    result.OrderID,
		Amount:     amount,
		Status:     domain.TransactionStatusCaptured,
		CustomerID: customer.ID,
		PlanID:     s.resolvePlanID(ctx, notes),
	}

	stored, created, err := s.transactions.Insert(ctx, tx)
	if err != nil {
		logger.Error("transaction insert failed",
			zap.String("payment_id", result.PaymentID), zap.Error(err))
		result.Warnings = append(result.Warnings, "transaction_insert: "+err.Error())
	} else {
		result.TransactionID = stored.ID
		result.AlreadyProcessed = !created
	}

	if !result.AlreadyProcessed {
		name := sanitizeFreeText(notes.Contact.Name, maxNameLength)
		itemName := sanitizeFreeText(notes.ItemName, maxItemNameLength)
		phone := sanitizePhone(notes.Contact.Phone)

		result = s.sendPurchaseEmail(ctx, result, PurchaseEmail{
			Name:      name,
			Email:     notes.Contact.Email,
			ItemName:  itemName,
			Amount:    amount,
			PaymentID: result.PaymentID,
			Phone:     phone,
			College:   sanitizeFreeText(notes.Contact.College, maxNameLength),
		})

		// Internship purchases additionally land on the onboarding roster.
		if strings.Contains(strings.ToLower(itemName), internshipKeyword) {
			result = s.exportPurchase(ctx, result, PurchaseRecord{
				Date:      time.Now().UTC(),
				Name:      name,
				Email:     notes.Contact.Email,
				Phone:     phone,
				ItemName:  itemName,
				Amount:    amount,
				PaymentID: result.PaymentID,
			})
		}
	}
	return result, nil
}

// resolvePlanID prefers the explicit planId note and falls back to a name
// lookup. An unresolvable plan leaves the transaction unlinked rather than
// failing it.
func (s *fulfillmentService) resolvePlanID(ctx context.Context, notes domain.ServiceNotes) *string {
	if planID := strings.TrimSpace(notes.PlanID); planID != "" {
		return &planID
	}
	itemName := strings.TrimSpace(notes.ItemName)
	if itemName == "" || s.plans == nil {
		return nil
	}

	plan, err := s.plans.FindByName(ctx, itemName)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			observability.FromContext(ctx).Warn("plan lookup failed",
				zap.String("item_name", itemName), zap.Error(err))
		}
		return nil
	}
	return &plan.ID
}

// exportPurchase mirrors the purchase into the operations roster. The charge
// is already captured and recorded, so a failed export is a warning only.
func (s *fulfillmentService) exportPurchase(ctx context.Context, result FulfillmentResult, record PurchaseRecord) FulfillmentResult {
	if err := s.exporter.ExportPurchase(ctx, record); err != nil {
		observability.FromContext(ctx).Warn("purchase export failed",
			zap.String("payment_id", result.PaymentID), zap.Error(err))
		result.Warnings = append(result.Warnings, "purchase_export: "+err.Error())
	}
	return result
}

func (s *fulfillmentService) sendPurchaseEmail(ctx context.Context, result FulfillmentResult, email PurchaseEmail) FulfillmentResult {
	if err := s.email.SendPurchaseConfirmation(ctx, email); err != nil {
		observability.FromContext(ctx).Warn("purchase email failed",
			zap.String("payment_id", result.PaymentID), zap.Error(err))
		result.Warnings = append(result.Warnings, "purchase_email: "+err.Error())
	}
	return result
}
