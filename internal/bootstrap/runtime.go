package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/migrate"
)

// Runtime is the shared process setup for every long-running binary.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
}

// Start reads .env when present, loads config, builds the service logger
// and opens the database. Dev environments also apply pending migrations.
func Start(ctx context.Context, service string) (*Runtime, error) {
	bootLog := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		bootLog.Debug(ctx, "no .env file; using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	logg := logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	return &Runtime{Config: cfg, Logger: logg, DB: dbClient}, nil
}

// Context tags ctx with the fields every log line from the binary should carry.
func (r *Runtime) Context(ctx context.Context) context.Context {
	return r.Logger.WithFields(ctx, map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.Config.Service.Kind,
	})
}

// Close releases the database handle.
func (r *Runtime) Close() {
	if r == nil || r.DB == nil {
		return
	}
	if err := r.DB.Close(); err != nil {
		r.Logger.Error(context.Background(), "db.close_failed", err)
	}
}
