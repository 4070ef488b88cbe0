package chapawebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/internal/payments"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const provider = "chapa"

type paymentVerifier interface {
	Verify(ctx context.Context, rawBody []byte, signature string) bool
	Confirm(ctx context.Context, txRef string, exp payments.Expectation) (*payments.Confirmation, error)
}

type orderService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	HandleConfirmedPayment(ctx context.Context, orderID uuid.UUID, payment orders.VerifiedPayment, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error)
	ResumeFulfillment(ctx context.Context, orderID uuid.UUID, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type webhookMetrics interface {
	IncWebhook(provider, result string)
}

// Event is the subset of Chapa's webhook body the service reads. Chapa sends
// trx_ref on some callbacks, so both spellings are accepted.
type Event struct {
	Event     string `json:"event"`
	TxRef     string `json:"tx_ref"`
	TrxRef    string `json:"trx_ref"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (e Event) ref() string {
	if v := strings.TrimSpace(e.TxRef); v != "" {
		return v
	}
	return strings.TrimSpace(e.TrxRef)
}

func (e Event) dedupeKey() string {
	if v := strings.TrimSpace(e.Reference); v != "" {
		return v
	}
	return e.ref()
}

// Result is what the handler acknowledges. Every Result maps to a 200.
type Result struct {
	TxRef       string                    `json:"tx_ref"`
	Duplicate   bool                      `json:"duplicate,omitempty"`
	Ignored     bool                      `json:"ignored,omitempty"`
	Fulfillment *orders.FulfillmentResult `json:"fulfillment,omitempty"`
}

type ServiceParams struct {
	Verifier paymentVerifier
	Orders   orderService
	Guard    deliveryGuard
	Metrics  webhookMetrics
	Logger   *logger.Logger
}

type Service struct {
	verifier paymentVerifier
	orders   orderService
	guard    deliveryGuard
	metrics  webhookMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment verifier required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	return &Service{
		verifier: params.Verifier,
		orders:   params.Orders,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Handle authenticates, verifies and applies one webhook delivery. A returned
// error means the delivery was not accepted and the processor should retry or give up.
func (s *Service) Handle(ctx context.Context, rawBody []byte, signature string) (*Result, error) {
	if !s.verifier.Verify(ctx, rawBody, signature) {
		s.count("bad_signature")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invalid webhook signature")
	}

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		s.count("malformed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	txRef := event.ref()
	if txRef == "" {
		s.count("malformed")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref missing")
	}
	ctx = s.withFields(ctx, map[string]any{"tx_ref": txRef, "event": event.Event, "reference": event.Reference})
	s.info(ctx, "webhook.chapa.received")

	orderID, err := uuid.Parse(txRef)
	if err != nil {
		s.count("unknown_order")
		s.warn(ctx, "webhook.chapa.unknown_tx_ref")
		return &Result{TxRef: txRef, Ignored: true}, nil
	}

	key := event.dedupeKey()
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, key)
		switch {
		case err != nil:
			s.warn(s.withFields(ctx, map[string]any{"error": err.Error()}), "webhook.chapa.guard_unavailable")
		case seen:
			s.count("duplicate")
			s.info(ctx, "webhook.chapa.duplicate")
			return &Result{TxRef: txRef, Duplicate: true}, nil
		}
	}

	res, err := s.apply(ctx, orderID, txRef)
	if err != nil || (!res.Ignored && !res.Fulfillment.Terminal()) {
		s.release(ctx, key)
	}
	return res, err
}

func (s *Service) apply(ctx context.Context, orderID uuid.UUID, txRef string) (*Result, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.count("unknown_order")
			s.warn(ctx, "webhook.chapa.unknown_order")
			return &Result{TxRef: txRef, Ignored: true}, nil
		}
		s.count("error")
		return nil, err
	}

	// payment already confirmed: a redelivery must not depend on the processor being reachable
	if order.Status == enums.OrderStatusPaid {
		fulfillment, err := s.orders.ResumeFulfillment(ctx, orderID, enums.TriggerWebhook)
		if err != nil {
			s.count("error")
			return nil, err
		}
		return s.processed(ctx, txRef, fulfillment), nil
	}

	conf, err := s.verifier.Confirm(ctx, txRef, payments.Expectation{Amount: order.Amount, Currency: order.Currency})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			s.count("processor_unavailable")
		} else {
			s.count("not_verified")
		}
		if s.logg != nil {
			s.logg.Warn(s.withFields(ctx, map[string]any{"error": err.Error()}), "webhook.chapa.verification_failed")
		}
		return nil, err
	}

	fulfillment, err := s.orders.HandleConfirmedPayment(ctx, orderID, orders.VerifiedPayment{
		Reference:     conf.Reference,
		Amount:        conf.Amount,
		Currency:      conf.Currency,
		CustomerName:  conf.CustomerName,
		CustomerEmail: conf.CustomerEmail,
		CustomerPhone: conf.CustomerPhone,
	}, enums.TriggerWebhook)
	if err != nil {
		s.count("error")
		return nil, err
	}
	return s.processed(ctx, txRef, fulfillment), nil
}

func (s *Service) processed(ctx context.Context, txRef string, fulfillment *orders.FulfillmentResult) *Result {
	s.count(string(fulfillment.Outcome))
	s.info(s.withFields(ctx, map[string]any{"outcome": fulfillment.Outcome, "attempt": fulfillment.Attempt}), "webhook.chapa.processed")
	return &Result{TxRef: txRef, Fulfillment: fulfillment}
}

func (s *Service) release(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil && s.logg != nil {
		s.logg.Warn(s.withFields(ctx, map[string]any{"error": err.Error()}), "webhook.chapa.guard_release_failed")
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(provider, result)
	}
}

func (s *Service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) info(ctx context.Context, event string) {
	if s.logg != nil {
		s.logg.Info(ctx, event)
	}
}

func (s *Service) warn(ctx context.Context, event string) {
	if s.logg != nil {
		s.logg.Warn(ctx, event)
	}
}
