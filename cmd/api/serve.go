package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/deal-portal/internal/api/http"
	"github.com/spec-kit/deal-portal/internal/api/http/handlers"
	"github.com/spec-kit/deal-portal/internal/auth"
	"github.com/spec-kit/deal-portal/internal/config"
	"github.com/spec-kit/deal-portal/internal/events"
	"github.com/spec-kit/deal-portal/internal/mail"
	"github.com/spec-kit/deal-portal/internal/observability"
	"github.com/spec-kit/deal-portal/internal/persistence"
	"github.com/spec-kit/deal-portal/internal/repository"
	"github.com/spec-kit/deal-portal/internal/service"
	"github.com/spec-kit/deal-portal/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = Version
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	profileRepo := repository.NewProfileRepository(pool)
	dealRepo := repository.NewDealRepository(pool)
	historyRepo := repository.NewStatusHistoryRepository(pool)
	messageRepo := repository.NewDealMessageRepository(pool)

	policy, err := service.ParseTransitionPolicy(cfg.Workflow.TransitionAllowList)
	if err != nil {
		return fmt.Errorf("invalid WORKFLOW_TRANSITION_ALLOWLIST: %w", err)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	dealService := service.NewDealService(service.DealDependencies{
		DealRepo:    dealRepo,
		HistoryRepo: historyRepo,
		MessageRepo: messageRepo,
		Transactor:  repository.NewTransactor(pool),
		Policy:      policy,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Deals:      dealRepo,
		Directory:  profileRepo,
		Mailer:     newMailer(cfg.Notification, logger),
		Ledger:     repository.NewRedisSendLedger(redis.ClientHandle()),
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Notification,
	})
	worker.StartNotificationWorker(notificationService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, profileRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Deals:           handlers.NewDealsHandler(dealService),
		AdminDeals:      handlers.NewAdminDealsHandler(dealService),
		Notifications:   handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware:  authMiddleware,
		MetricsRegistry: metrics.Registry(),
	}
	if cfg.RateLimit.Enabled {
		store, err := newLimiterStore(cfg.RateLimit, redis, logger)
		if err != nil {
			return err
		}
		routes.RateLimit = handlers.NewRateLimitHandler(service.NewRateLimitService(store))
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(ctx, logger)

	if err := app.Shutdown(); err != nil {
		return err
	}
	drain := cfg.Notification.MaxBackoff() * time.Duration(cfg.Notification.SendAttempts)
	if drain < 5*time.Second {
		drain = 5 * time.Second
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drain)
	defer drainCancel()
	if err := notificationService.Wait(drainCtx); err != nil {
		logger.Warn("pending notifications abandoned at shutdown", zap.Error(err))
	}
	return nil
}

func newMailer(cfg config.NotificationConfig, logger *zap.Logger) mail.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not provided; e-mails will be logged only")
		return mail.NewLogMailer(logger)
	}
	return mail.NewResendMailer(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.EmailFrom)
}

func newLimiterStore(cfg config.RateLimitConfig, redis *persistence.Redis, logger *zap.Logger) (limiter.Store, error) {
	if cfg.Storage != "redis" {
		return memory.NewStore(), nil
	}
	store, err := sredis.NewStoreWithOptions(redis.ClientHandle(), limiter.StoreOptions{
		Prefix:   "ratelimit",
		MaxRetry: 3,
	})
	if err != nil {
		logger.Warn("redis rate limit store unavailable; using memory store", zap.Error(err))
		return memory.NewStore(), nil
	}
	return store, nil
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
