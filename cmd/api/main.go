package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/chat"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	if err := os.MkdirAll(cfg.Storage.UploadRoot, 0o755); err != nil {
		logger.Fatal("failed to prepare upload root", zap.Error(err))
	}

	pool := pg.PoolHandle()
	clientRepo := repository.NewClientRepository(pool)
	adminRepo := repository.NewSuperAdminRepository(pool)
	companyRepo := repository.NewCompanyRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	chatRepo := repository.NewChatMessageRepository(pool)
	otpRepo := repository.NewOTPRepository(redis.Client)
	rateLimitRepo := repository.NewRateLimitRepository(redis.Client)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		ClientRepo:     clientRepo,
		SuperAdminRepo: adminRepo,
		CompanyRepo:    companyRepo,
		OTPRepo:        otpRepo,
		Dispatcher:     dispatcher,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
	})
	companyService := service.NewCompanyService(companyRepo)
	clientService := service.NewClientService(clientRepo, dispatcher)
	analyticsService := service.NewAnalyticsService(ticketRepo)
	notificationService := service.NewNotificationService(dispatcher, logger.Named("notifications"), cfg.Notification)

	clock := clockwork.NewRealClock()
	chatLogger := logger.Named("chat")
	attachments := chat.NewAttachmentStore(cfg.Storage.UploadRoot, cfg.Storage.PublicBaseURL, clock, chatLogger)
	messageStore := chat.NewMessageStore(chatRepo, attachments)
	hub := chat.NewHub(cfg.Chat, chat.HubDependencies{
		Authenticator: chat.NewAuthenticator(authService.TokenManager(), clientRepo, adminRepo),
		Authorizer:    chat.NewAuthorizer(ticketRepo),
		Validator:     chat.NewMessageValidator(cfg.Chat.MaxAttachmentBytes, nil),
		Attachments:   attachments,
		Messages:      messageStore,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        chatLogger,
		Clock:         clock,
	})

	worker.StartNotificationWorker(notificationService)
	worker.StartRealtimeWorker(dispatcher, hub)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), clientRepo, adminRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             64 << 20,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, messageStore),
		AdminTickets:   handlers.NewAdminTicketsHandler(ticketService, messageStore),
		Companies:      handlers.NewCompaniesHandler(companyService),
		Clients:        handlers.NewClientsHandler(clientService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		WebSocket:      handlers.NewWebSocketHandler(ctx, hub, chatLogger, cfg.Chat.SendBufferSize),
		AuthMiddleware: authMiddleware,
		RateLimits:     rateLimitRepo,
		LoginPerMinute: cfg.Auth.LoginRatePerMinute,
		Metrics:        metrics,
		UploadRoot:     cfg.Storage.UploadRoot,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return worker.RunMaintenance(gctx, hub, chatLogger)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.Shutdown()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
