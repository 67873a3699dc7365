package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pulsefit/pulsefit/internal/app"
	"github.com/pulsefit/pulsefit/internal/auth"
	"github.com/pulsefit/pulsefit/internal/authz"
	"github.com/pulsefit/pulsefit/internal/billing"
	"github.com/pulsefit/pulsefit/internal/flags"
	"github.com/pulsefit/pulsefit/internal/gyms"
	"github.com/pulsefit/pulsefit/internal/observability"
	"github.com/pulsefit/pulsefit/internal/platform/cache"
	"github.com/pulsefit/pulsefit/internal/platform/db"
	"github.com/pulsefit/pulsefit/internal/shared"
	"github.com/pulsefit/pulsefit/jobs"
)

type sweepEnqueuer struct {
	client *jobs.Client
}

func (e sweepEnqueuer) EnqueueTrialSweep(ctx context.Context) error {
	_, err := e.client.EnqueueTrialSweep(ctx)
	return err
}

func (e sweepEnqueuer) EnqueueGraceSweep(ctx context.Context) error {
	_, err := e.client.EnqueueGraceSweep(ctx)
	return err
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := authz.ValidateCatalog(); err != nil {
		logger.Error("permission catalog invalid", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pulsefit_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	authzRepo := authz.NewRepository(dbpool)
	resolver := authz.NewResolver(authzRepo, logger)
	platformGate := authz.NewPlatformGate(authzRepo, logger)

	gymsRepo := gyms.NewRepository(dbpool)
	gymsService := gyms.NewService(gymsRepo, redisClient, logger, cfg.GymCacheTTL, cfg.GracePeriodDays)
	gymsHandler := gyms.NewHandler(logger, gymsService, resolver)

	flagsRepo := flags.NewRepository(dbpool)
	flagsService := flags.NewService(flagsRepo, redisClient, logger, cfg.FlagCacheTTL)
	flagEvaluator := flags.NewEvaluator(flagsService, gymsService, logger)
	flagAdminHandler := flags.NewAdminHandler(logger, flagsService)
	flagCheckHandler := flags.NewCheckHandler(flagEvaluator)

	metrics := observability.NewMetrics()

	guard := authz.Middleware{
		Resolver: resolver,
		Gate:     platformGate,
		Gyms:     gymsService,
		Logger:   logger,
		Metrics:  metrics,
		Paths:    cfg.GuardPaths(),
	}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, gymsService, logger, cfg.GracePeriodDays)
	billingHandler := billing.NewHandler(logger, billingService, sweepEnqueuer{client: jobClient})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		GymsHandler:      gymsHandler,
		FlagAdminHandler: flagAdminHandler,
		FlagCheckHandler: flagCheckHandler,
		BillingHandler:   billingHandler,
		Guard:            guard,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
