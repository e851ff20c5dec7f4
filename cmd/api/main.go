package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobflow_backend/internal/alerts"
	"jobflow_backend/internal/billing"
	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/internal/http/router"
	"jobflow_backend/internal/ingest"
	"jobflow_backend/internal/payments"
	"jobflow_backend/internal/reviews"
	"jobflow_backend/internal/tenants"
	"jobflow_backend/internal/webhooks"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/db"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	fields, err := fieldmap.Load(cfg.GetFieldMapPath())
	if err != nil {
		log.Error("failed to load field map", "error", err)
		panic("failed to load field map: " + err.Error())
	}

	if len(cfg.GetSecretsKey()) == 0 {
		log.Warn("SECRETS_KEY not configured; payment webhooks will be rejected for every tenant")
	}

	tenantRepo := tenants.New(pool, cfg.GetSecretsKey())
	billingRepo := billing.New(pool)
	platformClient := crm.NewClient(cfg, tenantRepo, log)
	processorClient := payments.NewProcessorClient(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var alertSender alerts.Sender
	if cfg.GetAlertEmailEnabled() {
		alertSender = alerts.NewSMTPSender(cfg)
	}
	alertsModule := alerts.New(alertSender, log)
	alertsModule.RegisterHandlers(eventBus)

	reviewsModule := reviews.NewModule(platformClient, tenantRepo, fields, cfg, log)
	webhooksModule := webhooks.NewModule(platformClient, fields, eventBus, log)
	paymentsModule := payments.NewModule(processorClient, tenantRepo, billingRepo, platformClient, fields, eventBus, log)
	val := validator.New()
	ingestModule := ingest.NewModule(platformClient, fields, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			reviewsModule,
			webhooksModule,
			paymentsModule,
			ingestModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
