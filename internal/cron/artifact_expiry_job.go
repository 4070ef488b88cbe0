package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const (
	defaultArtifactRetention = 72 * time.Hour
	defaultBatchSize         = 50
)

type ArtifactExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    artifactLister
	Expirer   artifactExpirer
	Retention time.Duration
	BatchSize int
}

type artifactLister interface {
	ListArtifactsSignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type artifactExpirer interface {
	ExpireArtifact(ctx context.Context, orderID uuid.UUID) error
}

// NewArtifactExpiryJob removes stored documents older than the retention window.
// Payment status is untouched.
func NewArtifactExpiryJob(params ArtifactExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("artifact expirer required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultArtifactRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &artifactExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		expirer:   params.Expirer,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type artifactExpiryJob struct {
	logg      *logger.Logger
	orders    artifactLister
	expirer   artifactExpirer
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *artifactExpiryJob) Name() string { return "artifact-expiry-sweep" }

func (j *artifactExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.orders.ListArtifactsSignedBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list expired artifacts: %w", err)
	}

	var errs error
	removed := 0
	for _, order := range rows {
		if err := j.expirer.ExpireArtifact(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", order.ID, err))
			continue
		}
		removed++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(rows),
		"removed": removed,
	}), "cron.artifact_sweep_complete")
	return errs
}
