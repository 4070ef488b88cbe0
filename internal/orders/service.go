package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/printshop-backend/internal/artifacts"
	"github.com/angelmondragon/printshop-backend/internal/documents"
	"github.com/angelmondragon/printshop-backend/internal/enrichment"
	"github.com/angelmondragon/printshop-backend/pkg/chapa"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/outbox/payloads"
)

const (
	defaultClaimLease = 10 * time.Minute
	checkoutTitle     = "Printshop order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutProcessor interface {
	Configured() bool
	Initialize(ctx context.Context, params chapa.InitializeParams) (*chapa.InitializeResult, error)
}

type enricher interface {
	Enrich(ctx context.Context, orderID uuid.UUID) (*enrichment.EnrichedData, error)
}

type documentBuilder interface {
	Build(st enums.ServiceType, form models.FormData) (*documents.Document, error)
	Filename(st enums.ServiceType, form models.FormData) (string, error)
}

type pdfRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

type artifactStore interface {
	Store(ctx context.Context, data []byte, key, filename string) (*artifacts.Artifact, error)
	Resign(ctx context.Context, path, filename string) (*artifacts.Artifact, error)
	Delete(ctx context.Context, rawURL string)
}

type fulfillmentMetrics interface {
	ObserveOutcome(trigger, outcome string)
	IncEnrichmentFailure(reason string)
	ObserveRender(d time.Duration)
}

// URLBuilder produces the absolute callback and return urls handed to the processor.
type URLBuilder interface {
	CallbackURL() string
	ReturnURL(orderID string) string
}

// Service owns the order lifecycle and sequences enrichment, rendering and storage.
type Service interface {
	CreateDraft(ctx context.Context, input CreateDraftInput) (*OrderDTO, error)
	InitiatePayment(ctx context.Context, orderID uuid.UUID, contact Contact) (*InitiateResult, error)
	HandleConfirmedPayment(ctx context.Context, orderID uuid.UUID, payment VerifiedPayment, trigger enums.FulfillmentTrigger) (*FulfillmentResult, error)
	ResumeFulfillment(ctx context.Context, orderID uuid.UUID, trigger enums.FulfillmentTrigger) (*FulfillmentResult, error)
	Rerender(ctx context.Context, orderID uuid.UUID, actor string) (*FulfillmentResult, error)
	Status(ctx context.Context, orderID uuid.UUID) (*StatusDTO, error)
	ResolveDownload(ctx context.Context, orderID uuid.UUID) (*DownloadDTO, error)
	DeleteArtifact(ctx context.Context, orderID uuid.UUID, actor string) error
	ExpireArtifact(ctx context.Context, orderID uuid.UUID) error
	Fulfillment(ctx context.Context, orderID uuid.UUID) (*FulfillmentView, error)
	Enrich(ctx context.Context, orderID uuid.UUID) (*EnrichDTO, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Processor  checkoutProcessor
	Enricher   enricher
	Documents  documentBuilder
	Renderer   pdfRenderer
	Artifacts  artifactStore
	URLs       URLBuilder
	Metrics    fulfillmentMetrics
	Logger     *logger.Logger
	ClaimLease time.Duration
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	processor  checkoutProcessor
	enricher   enricher
	documents  documentBuilder
	renderer   pdfRenderer
	artifacts  artifactStore
	urls       URLBuilder
	metrics    fulfillmentMetrics
	logg       *logger.Logger
	claimLease time.Duration
	now        func() time.Time
}

// NewService builds the order service. Enricher, Metrics and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Processor == nil:
		return nil, fmt.Errorf("payment processor required")
	case params.Documents == nil:
		return nil, fmt.Errorf("document builder required")
	case params.Renderer == nil:
		return nil, fmt.Errorf("pdf renderer required")
	case params.Artifacts == nil:
		return nil, fmt.Errorf("artifact store required")
	case params.URLs == nil:
		return nil, fmt.Errorf("public url builder required")
	}
	lease := params.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		processor:  params.Processor,
		enricher:   params.Enricher,
		documents:  params.Documents,
		renderer:   params.Renderer,
		artifacts:  params.Artifacts,
		urls:       params.URLs,
		metrics:    params.Metrics,
		logg:       params.Logger,
		claimLease: lease,
		now:        time.Now,
	}, nil
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID, lock bool) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		order *models.Order
		err   error
	)
	if lock {
		order, err = repo.FindByIDForUpdate(ctx, orderID)
	} else {
		order, err = repo.FindByID(ctx, orderID)
	}
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, s.repo, orderID, false)
}

func (s *service) CreateDraft(ctx context.Context, input CreateDraftInput) (*OrderDTO, error) {
	st, err := enums.ParseServiceType(input.ServiceType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service type")
	}
	price, ok := PriceFor(st)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service type is not sold")
	}
	if _, err := s.documents.Filename(st, input.FormData); err != nil {
		if errors.Is(err, documents.ErrUnknownTemplate) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown document template")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve document template")
	}

	form := input.FormData
	if form == nil {
		form = models.FormData{}
	}
	id := uuid.New()
	order := &models.Order{
		ID:               id,
		TxRef:            id.String(),
		ServiceType:      st.String(),
		Status:           enums.OrderStatusDraft,
		FulfillmentState: enums.FulfillmentNotStarted,
		Amount:           price.Amount,
		Currency:         price.Currency,
		FormData:         form,
		CustomerName:     optional(input.CustomerName),
		CustomerEmail:    optional(input.CustomerEmail),
		CustomerPhone:    optional(input.CustomerPhone),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, db.ConstraintOrderTxRef) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order reference already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	s.info(ctx, order.ID, "orders.draft_created", map[string]any{"service_type": order.ServiceType})
	dto := orderToDTO(order)
	return &dto, nil
}

func (s *service) InitiatePayment(ctx context.Context, orderID uuid.UUID, contact Contact) (*InitiateResult, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	}
	if !s.processor.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment processor secret missing")
	}

	updated, err := s.repo.MarkPending(ctx, order.ID, contact)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order pending")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	}

	email := contact.Email
	if email == "" && order.CustomerEmail != nil {
		email = *order.CustomerEmail
	}
	res, err := s.processor.Initialize(ctx, chapa.InitializeParams{
		TxRef:       order.TxRef,
		Amount:      order.Amount,
		Currency:    order.Currency.String(),
		Email:       email,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Phone:       contact.Phone,
		CallbackURL: s.urls.CallbackURL(),
		ReturnURL:   s.urls.ReturnURL(order.ID.String()),
		Title:       checkoutTitle,
		Description: order.ServiceType,
	})
	if err != nil {
		if errors.Is(err, chapa.ErrMissingSecret) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "payment processor secret missing")
		}
		if failErr := s.markPaymentFailed(ctx, order.ID, err); failErr != nil {
			return nil, failErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "payment initialization rejected")
	}

	s.info(ctx, order.ID, "orders.payment_initiated", nil)
	return &InitiateResult{CheckoutURL: res.CheckoutURL}, nil
}

func (s *service) markPaymentFailed(ctx context.Context, orderID uuid.UUID, cause error) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.repo.WithTx(tx).MarkFailed(ctx, orderID)
		if err != nil || !changed {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderPaymentFailedEvent{OrderID: orderID, Reason: cause.Error()},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
	}
	s.warn(ctx, orderID, "orders.payment_init_failed", map[string]any{"error": cause.Error()})
	return nil
}

func (s *service) Status(ctx context.Context, orderID uuid.UUID) (*StatusDTO, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	return &StatusDTO{
		OrderID:          order.ID,
		Status:           order.Status,
		FulfillmentState: order.FulfillmentState,
		Processing:       order.Status == enums.OrderStatusPaid && !order.HasArtifact(),
		ExpiresAt:        order.ExpiresAt,
	}, nil
}

// ResolveDownload returns a live link, re-signing it when the stored one has expired.
func (s *service) ResolveDownload(ctx context.Context, orderID uuid.UUID) (*DownloadDTO, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.HasArtifact() {
		if order.FulfillmentState == enums.FulfillmentDone {
			// swept by the expiry job; only an operator re-render brings it back
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document expired")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "document is still being prepared")
	}

	now := s.clock()
	if order.ExpiresAt != nil && order.ExpiresAt.After(now) {
		return &DownloadDTO{URL: *order.PDFURL, ExpiresAt: *order.ExpiresAt}, nil
	}

	if order.PDFPath == nil || *order.PDFPath == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document expired")
	}
	filename := s.filenameFor(order)
	art, err := s.artifacts.Resign(ctx, *order.PDFPath, filename)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-sign document")
	}
	if art == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document expired")
	}
	if err := s.repo.UpdateArtifactLink(ctx, order.ID, art.SignedURL, art.SignedAt, art.ExpiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist re-signed link")
	}
	s.info(ctx, order.ID, "orders.download_resigned", map[string]any{"expires_at": art.ExpiresAt})
	return &DownloadDTO{URL: art.SignedURL, ExpiresAt: art.ExpiresAt}, nil
}

func (s *service) filenameFor(order *models.Order) string {
	st, err := enums.ParseServiceType(order.ServiceType)
	if err != nil {
		return "document"
	}
	name, err := s.documents.Filename(st, order.FormData)
	if err != nil {
		return "document"
	}
	return name
}

// DeleteArtifact removes the stored document without touching payment status.
func (s *service) DeleteArtifact(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.removeArtifact(ctx, orderID, enums.EventOrderArtifactDeleted, "operator", &outbox.ActorRef{Subject: actor, Role: "operator"})
}

// ExpireArtifact is the retention sweep's removal, recorded as an expiry.
func (s *service) ExpireArtifact(ctx context.Context, orderID uuid.UUID) error {
	return s.removeArtifact(ctx, orderID, enums.EventOrderArtifactExpired, "retention", nil)
}

func (s *service) removeArtifact(ctx context.Context, orderID uuid.UUID, event enums.OutboxEventType, reason string, actor *outbox.ActorRef) error {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return err
	}
	if !order.HasArtifact() {
		return nil
	}

	s.artifacts.Delete(ctx, *order.PDFURL)

	path := ""
	if order.PDFPath != nil {
		path = *order.PDFPath
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ClearArtifact(ctx, order.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     event,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderArtifactRemovedEvent{
				OrderID:   order.ID,
				PDFPath:   path,
				RemovedAt: s.clock(),
				Reason:    reason,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear artifact")
	}
	s.info(ctx, order.ID, "orders.artifact_removed", map[string]any{"reason": reason})
	return nil
}

func (s *service) Fulfillment(ctx context.Context, orderID uuid.UUID) (*FulfillmentView, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAttempts(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list attempts")
	}
	view := &FulfillmentView{Order: orderToDTO(order), Attempts: make([]AttemptDTO, 0, len(rows))}
	for _, a := range rows {
		view.Attempts = append(view.Attempts, AttemptDTO{
			Attempt:    a.Attempt,
			Trigger:    a.Trigger,
			Outcome:    a.Outcome,
			Enriched:   a.Enriched,
			Error:      a.Error,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
			DurationMS: a.DurationMS,
		})
	}
	return view, nil
}

// Enrich runs the enrichment step on demand for an operator.
func (s *service) Enrich(ctx context.Context, orderID uuid.UUID) (*EnrichDTO, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	st, err := enums.ParseServiceType(order.ServiceType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored service type invalid")
	}
	if !st.NeedsEnrichment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service type is not enriched")
	}
	if s.enricher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "enrichment not configured")
	}
	data, err := s.enricher.Enrich(ctx, order.ID)
	if err != nil {
		if errors.Is(err, enrichment.ErrDisabled) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "enrichment not configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enrichment failed")
	}
	return &EnrichDTO{OrderID: order.ID, FormData: data.FormData, GeneratedAt: data.GeneratedAt}, nil
}

func (s *service) info(ctx context.Context, orderID uuid.UUID, event string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logFields(ctx, orderID, fields), event)
}

func (s *service) warn(ctx context.Context, orderID uuid.UUID, event string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logFields(ctx, orderID, fields), event)
}

func (s *service) logFields(ctx context.Context, orderID uuid.UUID, fields map[string]any) context.Context {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	if len(fields) > 0 {
		ctx = s.logg.WithFields(ctx, fields)
	}
	return ctx
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
