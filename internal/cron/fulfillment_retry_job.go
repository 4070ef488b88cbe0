package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const (
	defaultMaxAttempts = 5
	defaultClaimLease  = 10 * time.Minute
)

type FulfillmentRetryJobParams struct {
	Logger      *logger.Logger
	Orders      retryLister
	Fulfiller   fulfillmentResumer
	ClaimLease  time.Duration
	MaxAttempts int
	BatchSize   int
}

type retryLister interface {
	ListRetryable(ctx context.Context, staleClaimBefore time.Time, maxAttempts, limit int) ([]models.Order, error)
}

type fulfillmentResumer interface {
	ResumeFulfillment(ctx context.Context, orderID uuid.UUID, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error)
}

// NewFulfillmentRetryJob re-runs fulfillment for paid orders that failed or lost their claim.
func NewFulfillmentRetryJob(params FulfillmentRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Fulfiller == nil {
		return nil, fmt.Errorf("fulfillment service required")
	}
	lease := params.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &fulfillmentRetryJob{
		logg:        params.Logger,
		orders:      params.Orders,
		fulfiller:   params.Fulfiller,
		lease:       lease,
		maxAttempts: maxAttempts,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type fulfillmentRetryJob struct {
	logg        *logger.Logger
	orders      retryLister
	fulfiller   fulfillmentResumer
	lease       time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
}

func (j *fulfillmentRetryJob) Name() string { return "fulfillment-retry" }

func (j *fulfillmentRetryJob) Run(ctx context.Context) error {
	staleBefore := j.now().UTC().Add(-j.lease)
	rows, err := j.orders.ListRetryable(ctx, staleBefore, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("list retryable orders: %w", err)
	}

	var errs error
	counts := map[orders.Outcome]int{}
	for _, order := range rows {
		res, err := j.fulfiller.ResumeFulfillment(ctx, order.ID, enums.TriggerRetryJob)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resume %s: %w", order.ID, err))
			continue
		}
		counts[res.Outcome]++
		if res.Outcome == orders.OutcomeRenderFailed && order.FulfillmentAttempts+1 >= j.maxAttempts {
			j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"attempts": order.FulfillmentAttempts + 1,
				"stage":    res.Stage,
			}), "cron.fulfillment_attempts_exhausted")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"found":     len(rows),
		"fulfilled": counts[orders.OutcomeFulfilled],
		"failed":    counts[orders.OutcomeRenderFailed],
		"skipped":   counts[orders.OutcomeSkipped] + counts[orders.OutcomeInProgress] + counts[orders.OutcomeAlreadyFulfilled],
	}), "cron.fulfillment_retry_complete")
	return errs
}
