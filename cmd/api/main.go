package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kursadbilgin/tutor-notifier/internal/config"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/handler"
	"github.com/kursadbilgin/tutor-notifier/internal/infra/postgresql"
	"github.com/kursadbilgin/tutor-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/tutor-notifier/internal/infra/redis"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"github.com/kursadbilgin/tutor-notifier/internal/service"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
	"github.com/kursadbilgin/tutor-notifier/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("tutor-notifier stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer mq.Close()

	metrics := observability.NewMetrics()

	templates, err := template.NewDefaultRegistry(cfg.BrandName)
	if err != nil {
		return fmt.Errorf("template registry init failed: %w", err)
	}

	senders, err := buildSenders(cfg, logger)
	if err != nil {
		return err
	}

	limiter, err := infraredis.NewChannelRateLimiter(rdb, ratelimit.Limits{Default: cfg.RateLimitPerSec})
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}

	notifications := repository.NewGormNotificationRepo(db)
	attempts := repository.NewGormAttemptRepo(db)
	jobRuns := repository.NewGormJobRunRepo(db)

	dispatcher, err := service.NewDispatcher(
		notifications,
		attempts,
		repository.NewGormContactDirectory(db),
		templates,
		senders,
		logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)
	dispatcher.SetRateLimiter(limiter)

	reconciler, err := service.NewReconciler(notifications, attempts, jobRuns, senders, service.ReconcilerConfig{
		MinAge:   cfg.ReconcileMinAge(),
		PageSize: cfg.ReconcilePageSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("reconciler init failed: %w", err)
	}
	reconciler.SetMetrics(metrics)
	reconciler.SetRateLimiter(limiter)

	sweeper, err := service.NewExpirySweeper(
		repository.NewGormSubscriptionRepo(db),
		jobRuns,
		dispatcher,
		cfg.ExpiryLookahead(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("expiry sweeper init failed: %w", err)
	}
	sweeper.SetMetrics(metrics)

	publisher := queue.NewRabbitMQPublisher(mq)
	defer publisher.Close() //nolint:errcheck

	asyncDispatcher, err := service.NewAsyncDispatcher(publisher, logger)
	if err != nil {
		return fmt.Errorf("async dispatcher init failed: %w", err)
	}
	asyncDispatcher.SetMetrics(metrics)

	consumer := queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)
	defer consumer.Close() //nolint:errcheck

	worker, err := service.NewWorkerService(consumer, dispatcher, cfg.WorkerConcurrency, logger)
	if err != nil {
		return fmt.Errorf("worker init failed: %w", err)
	}
	worker.SetMetrics(metrics)

	jobLock, err := infraredis.NewJobLock(rdb, cfg.JobLockTTL())
	if err != nil {
		return fmt.Errorf("job lock init failed: %w", err)
	}

	scheduler := service.NewJobScheduler(jobLock, logger)
	if err := scheduler.Register(domain.JobReconcilePending, cfg.ReconcileSchedule, func(ctx context.Context) error {
		_, err := reconciler.ReconcilePending(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := scheduler.Register(domain.JobExpirySweep, cfg.ExpirySchedule, func(ctx context.Context) error {
		_, err := sweeper.SweepExpiring(ctx)
		return err
	}); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "tutor-notifier",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.Check{Name: "rabbitmq", Ping: func(context.Context) error { return mq.Ping() }},
	)
	if err := handler.RegisterNotificationRoutes(app, dispatcher, asyncDispatcher); err != nil {
		return err
	}
	if err := handler.RegisterJobRoutes(app, reconciler, sweeper, scheduler, jobRuns); err != nil {
		return err
	}
	if err := handler.RegisterTemplateRoutes(app, templates); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("tutor-notifier api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down api")
		return app.ShutdownWithContext(shutdownCtx)
	})

	g.Go(func() error {
		return worker.Start(gctx)
	})

	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("tutor-notifier stopped")
	return nil
}

// buildSenders wires a sender per configured channel. Channels without a
// provider are left out and rejected at dispatch time.
func buildSenders(cfg *config.Config, logger *zap.Logger) (provider.Senders, error) {
	var list []provider.Sender

	if cfg.EmailEnabled() {
		email, err := provider.NewEmailSender(provider.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("email sender init failed: %w", err)
		}
		list = append(list, email)
	} else {
		logger.Warn("email channel disabled: SMTP_HOST is not set")
	}

	if cfg.SMSEnabled() {
		sms, err := provider.NewSMSSender(provider.SMSConfig{
			Endpoint:           cfg.SMSAPIURL,
			APIKey:             cfg.SMSAPIKey,
			SenderID:           cfg.SMSSenderID,
			DefaultCountryCode: cfg.SMSDefaultCountryCode,
			Timeout:            cfg.ProviderTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("sms sender init failed: %w", err)
		}
		list = append(list, sms)
	} else {
		logger.Warn("sms channel disabled: SMS_API_URL is not set")
	}

	whatsapp, err := provider.NewWhatsAppSender(provider.WhatsAppConfig{
		Endpoint:           cfg.WhatsAppAPIURL,
		Token:              cfg.WhatsAppAPIToken,
		SenderNumber:       cfg.WhatsAppSenderNumber,
		DefaultCountryCode: cfg.SMSDefaultCountryCode,
		Timeout:            cfg.ProviderTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("whatsapp sender init failed: %w", err)
	}
	list = append(list, whatsapp)

	return provider.NewSenders(list...)
}
