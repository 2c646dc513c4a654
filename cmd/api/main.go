package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zecurx/api/internal/di"
	"github.com/zecurx/api/internal/handlers"
	"github.com/zecurx/api/internal/platform/config"
	"github.com/zecurx/api/internal/platform/observability"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("missing required configuration", zap.Strings("values", validation.Missing))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to build dependencies", zap.Error(err))
	}
	defer container.Close()

	paymentHandlers := handlers.NewPaymentHandlers(container.Fulfillment)
	webhookHandlers := handlers.NewWebhookHandlers(container.Fulfillment, cfg.Processor.WebhookSecret)
	shopHandlers := handlers.NewShopHandlers(container.Repositories.ShopOrders, container.Repositories.Inventory)
	opsHandlers := handlers.NewOpsHandlers(container.Repositories.OrderIssues)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck(func(ctx context.Context) error {
			return container.Pool.Ping(ctx)
		}),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPaymentRoutes(func(r chi.Router) {
			paymentHandlers.Routes(r)
			webhookHandlers.Routes(r)
		}),
		handlers.WithShopRoutes(shopHandlers.Routes),
	}
	if container.OpsVerifier != nil {
		opts = append(opts,
			handlers.WithInternalRoutes(opsHandlers.Routes),
			handlers.WithInternalMiddlewares(container.OpsVerifier.RequireOpsToken()),
		)
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("zecurx api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
