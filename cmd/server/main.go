package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rfontaine/atelier/internal"
	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/email"
	"github.com/rfontaine/atelier/internal/handler/admin"
	"github.com/rfontaine/atelier/internal/handler/api"
	"github.com/rfontaine/atelier/internal/handler/webhook"
	"github.com/rfontaine/atelier/internal/middleware"
	"github.com/rfontaine/atelier/internal/postgres"
	"github.com/rfontaine/atelier/internal/router"
	"github.com/rfontaine/atelier/internal/routes"
	"github.com/rfontaine/atelier/internal/service"
	"github.com/rfontaine/atelier/internal/telemetry"
	"github.com/rfontaine/atelier/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	logger.Info("Database connection established")

	// Initialize Prometheus metrics
	httpMetrics := middleware.NewMetrics("atelier")
	telemetry.InitBusinessMetrics("atelier")

	// Initialize store
	store := postgres.NewStore(pool, logger)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize services
	checkoutService := service.NewCheckoutService(billingProvider, store, service.CheckoutConfig{
		BaseURL:        cfg.BaseURL,
		Currency:       cfg.Currency,
		DefaultCountry: cfg.DefaultCountry,
	}, logger)
	orderService := service.NewOrderService(store, cfg.DefaultCountry, logger)
	notificationService := service.NewNotificationService(store, logger)

	// Initialize email service. A nil sender disables outbound mail but
	// keeps the rest of the pipeline running; skipped sends are logged.
	var sender email.Sender
	switch cfg.Email.Provider {
	case "smtp":
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
	case "postmark":
		sender = email.NewPostmarkSender(cfg.Email.PostmarkToken)
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	logger.Info("Email service initialized", "provider", cfg.Email.Provider, "enabled", emailService.Enabled())

	// Start background job worker
	if cfg.Worker.Enabled {
		w := worker.NewWorker(store, emailService, worker.Config{
			PollInterval:   cfg.Worker.PollInterval,
			MaxConcurrency: cfg.Worker.MaxConcurrency,
		}, logger)
		go func() {
			if err := w.Start(ctx); err != nil {
				logger.Error("worker stopped", "error", err)
			}
		}()
	}

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	apiDeps := routes.APIDeps{
		CheckoutHandler: api.NewCheckoutHandler(checkoutService, logger),
	}

	adminDeps := routes.AdminDeps{
		OrderHandler:        admin.NewOrderHandler(orderService, logger),
		NotificationHandler: admin.NewNotificationHandler(notificationService, logger),
	}

	webhookDeps := routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(
			billingProvider,
			orderService,
			notificationService,
			store,
			webhook.StripeWebhookConfig{WebhookSecret: cfg.Stripe.WebhookSecret},
			logger,
		),
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.ContentSecurityPolicy = ""
		securityConfig.HSTSMaxAge = 0
	}

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	adminRateLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer adminRateLimiter.Stop()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		rateLimiter.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterAdminRoutes(r.Group(adminRateLimiter.Middleware), adminDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterOpsRoutes(r)

	// ==========================================================================
	// Start server
	// ==========================================================================

	// CORS wraps the whole router rather than individual routes: the mux
	// answers preflight OPTIONS requests with 405 before any per-route
	// middleware runs, so the preflight has to be handled outside it.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS([]string{cfg.BaseURL})(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Stop accepting new requests; in-flight requests and the worker's
	// in-flight jobs are allowed to finish.
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
