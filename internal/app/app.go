// Package app builds the ledger's dependency graph from configuration. The
// server, scheduler and CLI all start here.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/database"
	"github.com/segyhp/rent-ledger/internal/handler"
	"github.com/segyhp/rent-ledger/internal/lock"
	"github.com/segyhp/rent-ledger/internal/notify"
	"github.com/segyhp/rent-ledger/internal/processor"
	"github.com/segyhp/rent-ledger/internal/repository"
	"github.com/segyhp/rent-ledger/internal/service"
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Leases   repository.LeaseRepository
	Contacts repository.ContactRepository

	Obligations *service.ObligationService
	LateFees    *service.LateFeeService
	Reconciler  *service.Reconciler
	Reports     *service.ReportService
	Reminders   *service.ReminderService

	Verifier *processor.Verifier
}

// New opens the database and redis, applies the schema when
// DATABASE_AUTO_MIGRATE is set and wires every service
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("Database schema applied")
	}

	a := &App{Config: cfg, Logger: logger, DB: db}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		locker = lock.NewRedis(a.Redis, cfg.Redis.LockTTL, cfg.Redis.LockWait, logger)
	} else if !cfg.IsDevelopment() {
		logger.Warn("REDIS_URL not set, processor events are serialized per process only")
	}

	a.Leases = repository.NewLeaseRepository(db)
	a.Contacts = repository.NewContactRepository(db)
	obligationRepo := repository.NewObligationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ledger := repository.NewLedger(db)

	var (
		sender   notify.Sender
		notifier notify.Notifier = notify.NewLogNotifier(logger)
	)
	if cfg.Notification.Enabled {
		smtp := notify.NewSMTPSender(cfg.Notification, logger)
		sender = smtp
		notifier = notify.NewEmailNotifier(smtp, a.Contacts, logger)
	}
	alerter := notify.NewOperatorAlerter(logger, sender, cfg.Notification.OperatorEmail)

	gateway, err := processor.NewGateway(cfg.Processor, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.WithField("provider", gateway.Name()).Info("Payment processor configured")

	a.Obligations = service.NewObligationService(a.Leases, obligationRepo, cfg.Business, logger)
	a.LateFees = service.NewLateFeeService(obligationRepo, ledger, notifier, alerter, cfg.Business, logger)
	a.Reconciler = service.NewReconciler(ledger, paymentRepo, gateway, locker, notifier, alerter, cfg.Business, logger)
	a.Reports = service.NewReportService(obligationRepo)
	a.Reminders = service.NewReminderService(obligationRepo, notifier, cfg.Business, logger)
	a.Verifier = processor.NewVerifier(cfg.Processor.WebhookSecret)

	return a, nil
}

// Handlers builds the HTTP handlers over the app's services
func (a *App) Handlers() handler.Handlers {
	checks := []handler.HealthCheck{handler.DatabaseCheck(a.DB)}
	if a.Redis != nil {
		checks = append(checks, handler.RedisCheck(a.Redis))
	}

	return handler.Handlers{
		Health:      handler.NewHealthHandler(a.Config.Health.Timeout, checks...),
		Obligations: handler.NewObligationHandler(a.Obligations, a.Reports, a.Logger),
		Payments:    handler.NewPaymentHandler(a.Reconciler, a.Logger),
		Billing:     handler.NewBillingHandler(a.LateFees, a.Reminders, a.Logger),
		Webhooks:    handler.NewWebhookHandler(a.Reconciler, a.Verifier, a.Logger),
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close database")
	}
}
