package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dof-service/internal/api/http"
	"github.com/spec-kit/dof-service/internal/api/http/handlers"
	"github.com/spec-kit/dof-service/internal/auth"
	"github.com/spec-kit/dof-service/internal/config"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/mail"
	"github.com/spec-kit/dof-service/internal/observability"
	"github.com/spec-kit/dof-service/internal/persistence"
	"github.com/spec-kit/dof-service/internal/repository"
	"github.com/spec-kit/dof-service/internal/repository/memory"
	"github.com/spec-kit/dof-service/internal/service"
	"github.com/spec-kit/dof-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("running on the in-memory store; data is lost on restart")
		store = memory.NewStore()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	repos := store.Repos()

	deliveries := worker.NewDeliveryDispatcher(worker.DispatcherDependencies{
		Deliveries: repos.Deliveries,
		Settings:   repos.Settings,
		Sender:     mail.NewSMTPSender(cfg.Dispatcher.SendTimeout()),
		Events:     dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("delivery"),
	}, worker.DispatcherOptions{
		Workers:        cfg.Dispatcher.Workers,
		QueueSize:      cfg.Dispatcher.QueueSize,
		MaxRetries:     cfg.Dispatcher.MaxRetries,
		RetryDelay:     cfg.Dispatcher.RetryDelay(),
		RatePerSecond:  cfg.Dispatcher.RatePerSecond,
		Burst:          cfg.Dispatcher.Burst,
		FallbackSender: cfg.Notification.EmailFrom,
	})

	authService := service.NewAuthService(cfg.Auth, repos.Users)
	caseService := service.NewCaseService(service.CaseDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("cases"),
		BaseURL:    cfg.Notification.BaseURL,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Queue:      deliveries,
		Cache:      redis.Cache(),
		CacheTTL:   cfg.Redis.UnreadCacheTTL(),
		Logger:     logger.Named("notifications"),
	})
	orgService := service.NewOrgService(service.OrgDependencies{
		Store:  store,
		Ledger: deliveries,
		Hasher: authService.HashPassword,
		Logger: logger.Named("org"),
	})
	statsService := service.NewStatisticsService(store)

	worker.StartNotificationWorker(ctx, notificationService, deliveries)

	if created, err := orgService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to provision bootstrap admin", zap.Error(err))
	} else if created {
		logger.Info("bootstrap admin provisioned", zap.String("email", cfg.Auth.BootstrapAdminEmail))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Cases:          handlers.NewCasesHandler(caseService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Org:            handlers.NewOrgHandler(orgService, statsService),
		Admin:          handlers.NewAdminHandler(orgService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.Tokens(), repos.Users),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := deliveries.Stop(shutdownCtx); err != nil {
		logger.Warn("delivery dispatcher did not drain", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
