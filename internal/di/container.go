package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zecurx/api/internal/payments"
	"github.com/zecurx/api/internal/platform/auth"
	"github.com/zecurx/api/internal/platform/config"
	"github.com/zecurx/api/internal/platform/postgres"
	"github.com/zecurx/api/internal/repositories"
	pgrepo "github.com/zecurx/api/internal/repositories/postgres"
	"github.com/zecurx/api/internal/services"
)

// Repositories bundles the store-backed contracts handlers and services rely
// upon.
type Repositories struct {
	Customers    repositories.CustomerRepository
	Inventory    repositories.InventoryRepository
	ShopOrders   repositories.ShopOrderRepository
	Transactions repositories.TransactionRepository
	Plans        repositories.PlanRepository
	OrderIssues  repositories.OrderIssueRepository
}

// Container wires the pool, repositories, and services for runtime use.
type Container struct {
	Config       config.Config
	Pool         *pgxpool.Pool
	Repositories Repositories
	Fulfillment  services.FulfillmentService
	OpsVerifier  *auth.OpsTokenVerifier
}

// NewContainer constructs the runtime dependencies from configuration.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("di: connect database: %w", err)
	}

	repos := Repositories{
		Customers:    pgrepo.NewCustomerRepository(pool),
		Inventory:    pgrepo.NewInventoryRepository(pool),
		ShopOrders:   pgrepo.NewShopOrderRepository(pool),
		Transactions: pgrepo.NewTransactionRepository(pool),
		Plans:        pgrepo.NewPlanRepository(pool),
		OrderIssues:  pgrepo.NewOrderIssueRepository(pool),
	}

	var processor payments.Client
	if strings.TrimSpace(cfg.Processor.KeySecret) != "" {
		processor = payments.NewRazorpayClient(cfg.Processor)
	}

	var email services.EmailSender = services.NopEmailSender{}
	if cfg.Email.Enabled && strings.TrimSpace(cfg.Email.Endpoint) != "" {
		sender, err := services.NewHTTPEmailSender(cfg.Email)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("di: build email sender: %w", err)
		}
		email = sender
	}

	var exporter services.PurchaseExporter = services.NopPurchaseExporter{}
	if strings.TrimSpace(cfg.Sheets.SpreadsheetID) != "" && strings.TrimSpace(cfg.Sheets.CredentialsJSON) != "" {
		sheetsExporter, err := services.NewSheetsExporter(ctx, cfg.Sheets)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("di: build sheets exporter: %w", err)
		}
		exporter = sheetsExporter
	}

	fulfillment, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Processor:    processor,
		Customers:    repos.Customers,
		ShopOrders:   repos.ShopOrders,
		Transactions: repos.Transactions,
		Plans:        repos.Plans,
		Email:        email,
		Exporter:     exporter,
		Config:       cfg.Processor,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("di: build fulfillment service: %w", err)
	}

	var opsVerifier *auth.OpsTokenVerifier
	if strings.TrimSpace(cfg.Security.OpsTokenSecret) != "" {
		opsVerifier = auth.NewOpsTokenVerifier(cfg.Security.OpsTokenSecret)
	}

	return &Container{
		Config:       cfg,
		Pool:         pool,
		Repositories: repos,
		Fulfillment:  fulfillment,
		OpsVerifier:  opsVerifier,
	}, nil
}

// Close releases the database pool.
func (c *Container) Close() {
	if c == nil || c.Pool == nil {
		return
	}
	c.Pool.Close()
}
