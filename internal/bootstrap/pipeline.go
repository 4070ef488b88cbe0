// Package bootstrap assembles the fulfillment pipeline for the api and cron binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/printshop-backend/internal/artifacts"
	"github.com/angelmondragon/printshop-backend/internal/documents"
	"github.com/angelmondragon/printshop-backend/internal/enrichment"
	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/internal/payments"
	"github.com/angelmondragon/printshop-backend/pkg/chapa"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/pdf"
	"github.com/angelmondragon/printshop-backend/pkg/storage/gcs"
)

// Pipeline is the wired order service plus the handles callers need to ping or close.
type Pipeline struct {
	Orders   orders.Service
	Repo     orders.Repository
	Verifier *payments.Verifier
	Metrics  *metrics.FulfillmentMetrics
	Storage  *gcs.Client
}

// Close releases the storage client.
func (p *Pipeline) Close() error {
	if p == nil || p.Storage == nil {
		return nil
	}
	return p.Storage.Close()
}

// NewPipeline wires storage, rendering, enrichment and payment verification around the orders repository.
func NewPipeline(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Pipeline, error) {
	if cfg == nil || dbClient == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	fulfillmentMetrics := metrics.NewFulfillmentMetrics(reg)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	store, err := artifacts.NewStore(gcsClient, cfg.GCS.BucketName, logg)
	if err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	builder, err := documents.NewBuilder()
	if err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("document builder: %w", err)
	}

	repo := orders.NewRepository(dbClient.DB())
	processor := chapa.NewClient(cfg.Chapa, logg)

	verifier, err := payments.NewVerifier(payments.VerifierParams{
		Secret:       cfg.WebhookSecret(),
		Processor:    processor,
		StrictAmount: cfg.Payment.StrictAmount,
		Timeout:      cfg.Chapa.Timeout,
		Logger:       logg,
		Metrics:      fulfillmentMetrics,
	})
	if err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("payment verifier: %w", err)
	}
	if cfg.WebhookSecretIsFallback() {
		logg.Warn(ctx, "chapa webhook secret unset; verifying signatures with the api secret key")
	}

	enricher, err := enrichment.NewService(enrichment.ServiceParams{
		Orders:    repo,
		Generator: enrichment.NewOpenAIGenerator(cfg.OpenAI),
		Timeout:   cfg.OpenAI.Timeout,
		Logger:    logg,
	})
	if err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("enrichment service: %w", err)
	}

	svc, err := orders.NewService(orders.ServiceParams{
		Repo:       repo,
		Tx:         dbClient,
		Outbox:     outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Processor:  processor,
		Enricher:   enricher,
		Documents:  builder,
		Renderer:   pdf.NewChromeRenderer(cfg.Render),
		Artifacts:  store,
		URLs:       cfg.Public,
		Metrics:    fulfillmentMetrics,
		Logger:     logg,
		ClaimLease: cfg.Fulfillment.ClaimLease,
	})
	if err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("orders service: %w", err)
	}

	return &Pipeline{
		Orders:   svc,
		Repo:     repo,
		Verifier: verifier,
		Metrics:  fulfillmentMetrics,
		Storage:  gcsClient,
	}, nil
}
