package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/printshop-backend/internal/artifacts"
	"github.com/angelmondragon/printshop-backend/internal/enrichment"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/outbox/payloads"
)

const (
	StageEnrich = "enrich"
	StageBuild  = "build"
	StageRender = "render"
	StageStore  = "store"
	StageCommit = "commit"
)

// claim is a fulfillment attempt that won the order lock.
type claim struct {
	order   *models.Order
	st      enums.ServiceType
	state   enums.FulfillmentState
	attempt *models.FulfillmentAttempt
	trigger enums.FulfillmentTrigger
	force   bool
}

// HandleConfirmedPayment marks the order PAID and produces its document. It is
// safe to call repeatedly for the same order: later calls observe the first
// call's claim or its result and do not render again.
func (s *service) HandleConfirmedPayment(ctx context.Context, orderID uuid.UUID, payment VerifiedPayment, trigger enums.FulfillmentTrigger) (*FulfillmentResult, error) {
	var (
		early *FulfillmentResult
		c     *claim
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if res := s.settled(order); res != nil {
			early = res
			return nil
		}

		if order.Status != enums.OrderStatusPaid {
			if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to PAID", order.Status))
			}
			paidAt := s.clock()
			if _, err := repo.MarkPaid(ctx, order.ID, payment, paidAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:     order.ID,
					ServiceType: order.ServiceType,
					ChapaRef:    payment.Reference,
					Amount:      payment.Amount,
					Currency:    payment.Currency,
					PaidAt:      paidAt,
					Trigger:     trigger,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order paid")
			}
			if order, err = s.load(ctx, repo, orderID, false); err != nil {
				return err
			}
		}

		c, err = s.claim(ctx, repo, order, trigger, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if early != nil {
		return early, nil
	}
	s.info(ctx, orderID, "orders.payment_confirmed", map[string]any{"trigger": trigger, "attempt": c.attempt.Attempt})
	return s.fulfill(ctx, c), nil
}

// ResumeFulfillment picks up a PAID order whose document is missing. Orders
// that are not PAID are skipped.
func (s *service) ResumeFulfillment(ctx context.Context, orderID uuid.UUID, trigger enums.FulfillmentTrigger) (*FulfillmentResult, error) {
	var (
		early *FulfillmentResult
		c     *claim
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPaid {
			early = &FulfillmentResult{OrderID: order.ID, Outcome: OutcomeSkipped, Status: order.Status}
			return nil
		}
		if res := s.settled(order); res != nil {
			early = res
			return nil
		}
		c, err = s.claim(ctx, repo, order, trigger, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if early != nil {
		return early, nil
	}
	return s.fulfill(ctx, c), nil
}

// Rerender produces a fresh document for a PAID order, replacing any stored one.
func (s *service) Rerender(ctx context.Context, orderID uuid.UUID, actor string) (*FulfillmentResult, error) {
	var (
		early *FulfillmentResult
		c     *claim
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be re-rendered")
		}
		if s.claimLive(order) {
			early = &FulfillmentResult{OrderID: order.ID, Outcome: OutcomeInProgress, Status: order.Status, Attempt: order.FulfillmentAttempts}
			return nil
		}
		c, err = s.claim(ctx, repo, order, enums.TriggerOperator, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if early != nil {
		return early, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithOperator(ctx, actor)
	}
	s.info(ctx, orderID, "orders.rerender_requested", map[string]any{"attempt": c.attempt.Attempt})
	return s.fulfill(ctx, c), nil
}

// settled returns a result when a PAID order needs no new attempt.
func (s *service) settled(order *models.Order) *FulfillmentResult {
	if order.Status != enums.OrderStatusPaid {
		return nil
	}
	if order.FulfillmentState == enums.FulfillmentDone {
		return &FulfillmentResult{
			OrderID:   order.ID,
			Outcome:   OutcomeAlreadyFulfilled,
			Status:    order.Status,
			PDFURL:    order.PDFURL,
			ExpiresAt: order.ExpiresAt,
			Attempt:   order.FulfillmentAttempts,
			Enriched:  order.AIGenerated,
		}
	}
	if s.claimLive(order) {
		return &FulfillmentResult{OrderID: order.ID, Outcome: OutcomeInProgress, Status: order.Status, Attempt: order.FulfillmentAttempts}
	}
	return nil
}

// claimLive reports whether another attempt holds an unexpired claim.
func (s *service) claimLive(order *models.Order) bool {
	if !order.FulfillmentState.InFlight() || order.FulfillmentClaimedAt == nil {
		return false
	}
	return order.FulfillmentClaimedAt.After(s.clock().Add(-s.claimLease))
}

func (s *service) claim(ctx context.Context, repo Repository, order *models.Order, trigger enums.FulfillmentTrigger, force bool) (*claim, error) {
	st, err := enums.ParseServiceType(order.ServiceType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored service type invalid")
	}
	state := enums.FulfillmentRendering
	if st.NeedsEnrichment() && !order.AIGenerated && s.enricher != nil {
		state = enums.FulfillmentEnriching
	}

	now := s.clock()
	if err := repo.Claim(ctx, order.ID, state, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim fulfillment")
	}
	attempt := &models.FulfillmentAttempt{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Attempt:   order.FulfillmentAttempts + 1,
		Trigger:   trigger,
		Outcome:   state,
		StartedAt: now,
	}
	if err := repo.CreateAttempt(ctx, attempt); err != nil {
		if db.IsUniqueViolation(err, db.ConstraintAttemptOrdinal) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "fulfillment attempt already claimed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record fulfillment attempt")
	}
	return &claim{order: order, st: st, state: state, attempt: attempt, trigger: trigger, force: force}, nil
}

// fulfill runs the claimed attempt to completion or to RENDER_FAILED. Payment
// status is never touched here.
func (s *service) fulfill(ctx context.Context, c *claim) *FulfillmentResult {
	order := c.order
	form := order.FormData
	enriched := order.AIGenerated

	if c.state == enums.FulfillmentEnriching {
		data, err := s.enricher.Enrich(ctx, order.ID)
		if err != nil {
			reason := enrichmentFailureReason(err)
			if s.metrics != nil {
				s.metrics.IncEnrichmentFailure(reason)
			}
			s.warn(ctx, order.ID, "orders.enrichment_skipped", map[string]any{"reason": reason, "error": err.Error()})
		} else {
			form = data.FormData
			enriched = true
		}
		if err := s.repo.SetFulfillmentState(ctx, order.ID, enums.FulfillmentRendering); err != nil {
			return s.fail(ctx, c, enriched, StageEnrich, err)
		}
	}

	doc, err := s.documents.Build(c.st, form)
	if err != nil {
		return s.fail(ctx, c, enriched, StageBuild, err)
	}

	started := time.Now()
	data, err := s.renderer.Render(ctx, doc.HTML)
	if s.metrics != nil {
		s.metrics.ObserveRender(time.Since(started))
	}
	if err != nil {
		return s.fail(ctx, c, enriched, StageRender, err)
	}

	art, err := s.artifacts.Store(ctx, data, artifacts.ObjectKey(order.ID, doc.Kind), doc.Filename)
	if err != nil {
		return s.fail(ctx, c, enriched, StageStore, err)
	}

	outcome := OutcomeFulfilled
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		completed, err := repo.CompleteFulfillment(ctx, order.ID, ArtifactFields{
			URL:       art.SignedURL,
			Path:      art.Path,
			SignedAt:  art.SignedAt,
			ExpiresAt: art.ExpiresAt,
		}, c.force)
		if err != nil {
			return err
		}
		if err := repo.FinishAttempt(ctx, c.attempt.ID, enums.FulfillmentDone, enriched, nil, s.clock()); err != nil {
			return err
		}
		if !completed {
			outcome = OutcomeAlreadyFulfilled
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFulfilled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderFulfilledEvent{
				OrderID:     order.ID,
				ServiceType: order.ServiceType,
				PDFPath:     art.Path,
				ExpiresAt:   art.ExpiresAt,
				AIGenerated: enriched,
				Attempt:     c.attempt.Attempt,
			},
		})
	})
	if err != nil {
		return s.fail(ctx, c, enriched, StageCommit, err)
	}

	s.observe(c, outcome)
	s.info(ctx, order.ID, "orders.fulfilled", map[string]any{
		"attempt":    c.attempt.Attempt,
		"trigger":    c.trigger,
		"enriched":   enriched,
		"expires_at": art.ExpiresAt,
		"outcome":    outcome,
	})

	if outcome == OutcomeAlreadyFulfilled {
		if current, err := s.repo.FindByID(ctx, order.ID); err == nil {
			if res := s.settled(current); res != nil {
				return res
			}
		}
	}
	url, expires := art.SignedURL, art.ExpiresAt
	return &FulfillmentResult{
		OrderID:   order.ID,
		Outcome:   outcome,
		Status:    enums.OrderStatusPaid,
		PDFURL:    &url,
		ExpiresAt: &expires,
		Attempt:   c.attempt.Attempt,
		Enriched:  enriched,
	}
}

// fail records RENDER_FAILED for the attempt. Bookkeeping runs detached from
// the caller's deadline so a render timeout still leaves a durable record.
func (s *service) fail(ctx context.Context, c *claim, enriched bool, stage string, cause error) *FulfillmentResult {
	ctx = context.WithoutCancel(ctx)
	msg := fmt.Sprintf("%s: %v", stage, cause)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.FailFulfillment(ctx, c.order.ID, msg); err != nil {
			return err
		}
		if err := repo.FinishAttempt(ctx, c.attempt.ID, enums.FulfillmentRenderFailed, enriched, &msg, s.clock()); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRenderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   c.order.ID,
			Data: payloads.OrderRenderFailedEvent{
				OrderID: c.order.ID,
				Attempt: c.attempt.Attempt,
				Stage:   stage,
				Error:   cause.Error(),
			},
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(s.logFields(ctx, c.order.ID, map[string]any{"stage": stage}), "orders.fail_record_failed", err)
	}

	s.observe(c, OutcomeRenderFailed)
	if s.logg != nil {
		s.logg.Error(s.logFields(ctx, c.order.ID, map[string]any{
			"stage":   stage,
			"attempt": c.attempt.Attempt,
			"trigger": c.trigger,
		}), "orders.fulfillment_failed", cause)
	}

	return &FulfillmentResult{
		OrderID:  c.order.ID,
		Outcome:  OutcomeRenderFailed,
		Status:   enums.OrderStatusPaid,
		Attempt:  c.attempt.Attempt,
		Enriched: enriched,
		Stage:    stage,
		Err:      cause,
	}
}

func (s *service) observe(c *claim, outcome Outcome) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(c.trigger.String(), string(outcome))
	}
}

func enrichmentFailureReason(err error) string {
	switch {
	case errors.Is(err, enrichment.ErrDisabled):
		return "disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
