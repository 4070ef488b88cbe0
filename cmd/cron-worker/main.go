package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/printshop-backend/internal/bootstrap"
	"github.com/angelmondragon/printshop-backend/internal/cron"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, serviceName)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "redis.close_failed", err)
		}
	}()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logg, rt.DB, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("fulfillment pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logg.Error(context.Background(), "pipeline.close_failed", err)
		}
	}()

	jobs, err := buildRegistry(cfg, logg, rt.DB, pipeline)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = rt.Context(ctx)
	bootstrap.ServeMetrics(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(ctx, "cron_worker.started")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron_worker.stopped")
	return nil
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, pipeline *bootstrap.Pipeline) (*cron.Registry, error) {
	expiry, err := cron.NewArtifactExpiryJob(cron.ArtifactExpiryJobParams{
		Logger:    logg,
		Orders:    pipeline.Repo,
		Expirer:   pipeline.Orders,
		Retention: cfg.Fulfillment.ArtifactRetention,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	retry, err := cron.NewFulfillmentRetryJob(cron.FulfillmentRetryJobParams{
		Logger:      logg,
		Orders:      pipeline.Repo,
		Fulfiller:   pipeline.Orders,
		ClaimLease:  cfg.Fulfillment.ClaimLease,
		MaxAttempts: cfg.Fulfillment.MaxAttempts,
		BatchSize:   cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewPendingReconcileJob(cron.PendingReconcileJobParams{
		Logger:    logg,
		Orders:    pipeline.Repo,
		Verifier:  pipeline.Verifier,
		Fulfiller: pipeline.Orders,
		OlderThan: cfg.Fulfillment.PendingReconcile,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.Retention,
		MinAttempts: cfg.Outbox.MaxAttempts,
		BatchSize:   cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	registry.Register(expiry, cfg.Cron.SweepEvery)
	registry.Register(retry, cfg.Cron.RetryEvery)
	registry.Register(reconcile, cfg.Cron.ReconcileEvery)
	registry.Register(retention, cfg.Cron.RetentionEvery)
	return registry, nil
}
