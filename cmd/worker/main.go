package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pulsefit/pulsefit/internal/app"
	"github.com/pulsefit/pulsefit/internal/billing"
	"github.com/pulsefit/pulsefit/internal/gyms"
	"github.com/pulsefit/pulsefit/internal/platform/cache"
	"github.com/pulsefit/pulsefit/internal/platform/db"
	"github.com/pulsefit/pulsefit/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	gymsRepo := gyms.NewRepository(pool)
	gymsService := gyms.NewService(gymsRepo, redisClient, logger, cfg.GymCacheTTL, cfg.GracePeriodDays)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, gymsService, logger, cfg.GracePeriodDays)
	sweepJob := jobs.NewBillingSweepJob(billingService, logger)

	trialTask, err := jobs.NewTrialSweepTask()
	if err != nil {
		logger.Error("build trial sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	graceTask, err := jobs.NewGraceSweepTask()
	if err != nil {
		logger.Error("build grace sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBillingTrialSweep, Handler: sweepJob.HandleTrialSweep},
			{Type: jobs.TaskBillingGraceSweep, Handler: sweepJob.HandleGraceSweep},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: trialTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: graceTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
