package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/printshop-backend/api/controllers"
	"github.com/angelmondragon/printshop-backend/api/routes"
	"github.com/angelmondragon/printshop-backend/internal/bootstrap"
	chapawebhook "github.com/angelmondragon/printshop-backend/internal/webhooks/chapa"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 20 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "api exited", err)
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logg, rt.DB, reg)
	if err != nil {
		return fmt.Errorf("fulfillment pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logg.Error(context.Background(), "pipeline.close_failed", err)
		}
	}()

	guard, err := chapawebhook.NewIdempotencyGuard(redisClient, cfg.Payment.WebhookTTL, "chapa")
	if err != nil {
		return fmt.Errorf("webhook guard: %w", err)
	}
	webhooks, err := chapawebhook.NewService(chapawebhook.ServiceParams{
		Verifier: pipeline.Verifier,
		Orders:   pipeline.Orders,
		Guard:    guard,
		Metrics:  pipeline.Metrics,
		Logger:   logg,
	})
	if err != nil {
		return fmt.Errorf("webhook service: %w", err)
	}

	// PORT is injected by the hosting platform and wins over config.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.Deps{
			Config:  cfg,
			Logger:  logg,
			Orders:  pipeline.Orders,
			Webhook: webhooks,
			Redis:   redisClient,
			Ready: map[string]controllers.Pinger{
				"db":    rt.DB,
				"redis": redisClient,
				"gcs":   pipeline.Storage,
			},
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithField(rt.Context(ctx), "addr", server.Addr)
	return serve(ctx, logg, server)
}

func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api.listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logg.Info(context.Background(), "api.shutdown_requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
