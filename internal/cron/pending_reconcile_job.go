package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/internal/payments"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const defaultPendingAge = 15 * time.Minute

type PendingReconcileJobParams struct {
	Logger    *logger.Logger
	Orders    pendingLister
	Verifier  paymentConfirmer
	Fulfiller paymentHandler
	OlderThan time.Duration
	BatchSize int
}

type pendingLister interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkReconcileChecked(ctx context.Context, orderID uuid.UUID, at time.Time) error
}

type paymentConfirmer interface {
	Confirm(ctx context.Context, txRef string, exp payments.Expectation) (*payments.Confirmation, error)
}

type paymentHandler interface {
	HandleConfirmedPayment(ctx context.Context, orderID uuid.UUID, payment orders.VerifiedPayment, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error)
}

// NewPendingReconcileJob asks the processor about orders stuck in PENDING, covering
// webhooks that never arrived.
func NewPendingReconcileJob(params PendingReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Fulfiller == nil {
		return nil, fmt.Errorf("order service required")
	}
	age := params.OlderThan
	if age <= 0 {
		age = defaultPendingAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &pendingReconcileJob{
		logg:      params.Logger,
		orders:    params.Orders,
		verifier:  params.Verifier,
		fulfiller: params.Fulfiller,
		age:       age,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type pendingReconcileJob struct {
	logg      *logger.Logger
	orders    pendingLister
	verifier  paymentConfirmer
	fulfiller paymentHandler
	age       time.Duration
	batch     int
	now       func() time.Time
}

func (j *pendingReconcileJob) Name() string { return "pending-payment-reconcile" }

func (j *pendingReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	rows, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	var errs error
	paid, unpaid := 0, 0
	checkedAt := j.now().UTC()
	for _, order := range rows {
		conf, err := j.verifier.Confirm(ctx, order.TxRef, payments.Expectation{Amount: order.Amount, Currency: order.Currency})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotVerified) {
				unpaid++
			} else {
				errs = multierr.Append(errs, fmt.Errorf("verify %s: %w", order.ID, err))
			}
			// rotate to the back of the queue so the next run reaches other orders
			if markErr := j.orders.MarkReconcileChecked(ctx, order.ID, checkedAt); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark checked %s: %w", order.ID, markErr))
			}
			continue
		}
		if _, err := j.fulfiller.HandleConfirmedPayment(ctx, order.ID, orders.VerifiedPayment{
			Reference:     conf.Reference,
			Amount:        conf.Amount,
			Currency:      conf.Currency,
			CustomerName:  conf.CustomerName,
			CustomerEmail: conf.CustomerEmail,
			CustomerPhone: conf.CustomerPhone,
		}, enums.TriggerReconcile); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("confirm %s: %w", order.ID, err))
			continue
		}
		paid++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"found":  len(rows),
		"paid":   paid,
		"unpaid": unpaid,
	}), "cron.pending_reconcile_complete")
	return errs
}
