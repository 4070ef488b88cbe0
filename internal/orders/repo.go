package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// Repository defines persistence for orders and their fulfillment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPending(ctx context.Context, id uuid.UUID, contact Contact) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, payment VerifiedPayment, paidAt time.Time) (bool, error)
	Claim(ctx context.Context, id uuid.UUID, state enums.FulfillmentState, claimedAt time.Time) error
	SetFulfillmentState(ctx context.Context, id uuid.UUID, state enums.FulfillmentState) error
	CompleteFulfillment(ctx context.Context, id uuid.UUID, art ArtifactFields, force bool) (bool, error)
	FailFulfillment(ctx context.Context, id uuid.UUID, message string) error
	UpdateArtifactLink(ctx context.Context, id uuid.UUID, url string, signedAt, expiresAt time.Time) error
	ClearArtifact(ctx context.Context, id uuid.UUID) error
	MergeFormData(ctx context.Context, id uuid.UUID, fields map[string]any, generatedAt time.Time) error
	CreateAttempt(ctx context.Context, attempt *models.FulfillmentAttempt) error
	FinishAttempt(ctx context.Context, id uuid.UUID, outcome enums.FulfillmentState, enriched bool, message *string, finishedAt time.Time) error
	ListAttempts(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentAttempt, error)
	ListArtifactsSignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ListRetryable(ctx context.Context, staleClaimBefore time.Time, maxAttempts, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkReconcileChecked(ctx context.Context, orderID uuid.UUID, at time.Time) error
}

// ArtifactFields is the stored document reference written on completion.
type ArtifactFields struct {
	URL       string
	Path      string
	SignedAt  time.Time
	ExpiresAt time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) orders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Order{})
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkPending(ctx context.Context, id uuid.UUID, contact Contact) (bool, error) {
	updates := map[string]any{"status": enums.OrderStatusPending}
	if name := contact.FullName(); name != "" {
		updates["customer_name"] = name
	}
	if contact.Email != "" {
		updates["customer_email"] = contact.Email
	}
	if contact.Phone != "" {
		updates["customer_phone"] = contact.Phone
	}
	res := r.orders(ctx).Where("id = ? AND status <> ?", id, enums.OrderStatusPaid).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.orders(ctx).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Update("status", enums.OrderStatusFailed)
	return res.RowsAffected > 0, res.Error
}

// MarkPaid records the verified payment. Processor values replace any checkout contact fields.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, payment VerifiedPayment, paidAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":  enums.OrderStatusPaid,
		"paid_at": paidAt,
	}
	if payment.Reference != "" {
		updates["chapa_ref"] = payment.Reference
	}
	if payment.CustomerName != "" {
		updates["customer_name"] = payment.CustomerName
	}
	if payment.CustomerEmail != "" {
		updates["customer_email"] = payment.CustomerEmail
	}
	if payment.CustomerPhone != "" {
		updates["customer_phone"] = payment.CustomerPhone
	}
	res := r.orders(ctx).Where("id = ? AND status <> ?", id, enums.OrderStatusPaid).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) Claim(ctx context.Context, id uuid.UUID, state enums.FulfillmentState, claimedAt time.Time) error {
	return r.orders(ctx).Where("id = ?", id).Updates(map[string]any{
		"fulfillment_state":      state,
		"fulfillment_claimed_at": claimedAt,
		"fulfillment_attempts":   gorm.Expr("fulfillment_attempts + 1"),
	}).Error
}

func (r *repository) SetFulfillmentState(ctx context.Context, id uuid.UUID, state enums.FulfillmentState) error {
	return r.orders(ctx).Where("id = ?", id).Update("fulfillment_state", state).Error
}

// CompleteFulfillment stores the artifact. Unless force is set it only writes when no url exists yet.
func (r *repository) CompleteFulfillment(ctx context.Context, id uuid.UUID, art ArtifactFields, force bool) (bool, error) {
	q := r.orders(ctx).Where("id = ? AND status = ?", id, enums.OrderStatusPaid)
	if !force {
		q = q.Where("pdf_url IS NULL")
	}
	res := q.Updates(map[string]any{
		"pdf_url":                art.URL,
		"pdf_path":               art.Path,
		"pdf_signed_at":          art.SignedAt,
		"expires_at":             art.ExpiresAt,
		"fulfillment_state":      enums.FulfillmentDone,
		"fulfillment_claimed_at": nil,
		"fulfillment_last_error": nil,
	})
	return res.RowsAffected > 0, res.Error
}

// FailFulfillment records the error. An order that still holds an earlier document stays DONE.
func (r *repository) FailFulfillment(ctx context.Context, id uuid.UUID, message string) error {
	return r.orders(ctx).Where("id = ?", id).Updates(map[string]any{
		"fulfillment_state": gorm.Expr("CASE WHEN pdf_url IS NULL THEN ? ELSE ? END",
			enums.FulfillmentRenderFailed, enums.FulfillmentDone),
		"fulfillment_claimed_at": nil,
		"fulfillment_last_error": message,
	}).Error
}

func (r *repository) UpdateArtifactLink(ctx context.Context, id uuid.UUID, url string, signedAt, expiresAt time.Time) error {
	return r.orders(ctx).Where("id = ? AND pdf_url IS NOT NULL", id).Updates(map[string]any{
		"pdf_url":       url,
		"pdf_signed_at": signedAt,
		"expires_at":    expiresAt,
	}).Error
}

func (r *repository) ClearArtifact(ctx context.Context, id uuid.UUID) error {
	return r.orders(ctx).Where("id = ?", id).Updates(map[string]any{
		"pdf_url":       nil,
		"pdf_path":      nil,
		"pdf_signed_at": nil,
		"expires_at":    nil,
	}).Error
}

// MergeFormData adds or overwrites keys in form_data under a row lock. Existing keys not
// present in fields are kept.
func (r *repository) MergeFormData(ctx context.Context, id uuid.UUID, fields map[string]any, generatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &repository{db: tx}
		order, err := txRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		merged := models.FormData{}
		for k, v := range order.FormData {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		return tx.Model(order).
			Select("form_data", "ai_generated", "ai_generated_at").
			Updates(&models.Order{FormData: merged, AIGenerated: true, AIGeneratedAt: &generatedAt}).Error
	})
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.FulfillmentAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) FinishAttempt(ctx context.Context, id uuid.UUID, outcome enums.FulfillmentState, enriched bool, message *string, finishedAt time.Time) error {
	var attempt models.FulfillmentAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return err
	}
	duration := finishedAt.Sub(attempt.StartedAt).Milliseconds()
	return r.db.WithContext(ctx).Model(&models.FulfillmentAttempt{}).Where("id = ?", id).Updates(map[string]any{
		"outcome":     outcome,
		"enriched":    enriched,
		"error":       message,
		"finished_at": finishedAt,
		"duration_ms": duration,
	}).Error
}

func (r *repository) ListAttempts(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentAttempt, error) {
	var attempts []models.FulfillmentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *repository) ListArtifactsSignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND pdf_url IS NOT NULL AND pdf_signed_at < ?", enums.OrderStatusPaid, cutoff).
		Order("pdf_signed_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListRetryable returns paid orders whose last attempt failed, never started, or holds a stale claim.
func (r *repository) ListRetryable(ctx context.Context, staleClaimBefore time.Time, maxAttempts, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND pdf_url IS NULL AND fulfillment_attempts < ?", enums.OrderStatusPaid, maxAttempts).
		Where(
			r.db.Where("fulfillment_state IN ?", []enums.FulfillmentState{enums.FulfillmentRenderFailed, enums.FulfillmentNotStarted}).
				Or("fulfillment_state IN ? AND (fulfillment_claimed_at IS NULL OR fulfillment_claimed_at < ?)",
					[]enums.FulfillmentState{enums.FulfillmentEnriching, enums.FulfillmentRendering}, staleClaimBefore),
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListPendingBefore returns PENDING orders untouched since cutoff. Orders never
// reconciled come first, then the ones checked longest ago, so a backlog of
// abandoned checkouts cannot starve newer orders.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.OrderStatusPending, cutoff).
		Order("reconcile_checked_at IS NOT NULL, reconcile_checked_at ASC, updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkReconcileChecked stamps a processor check that did not settle the order.
// updated_at is left alone so the order keeps its place in the age window.
func (r *repository) MarkReconcileChecked(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		UpdateColumn("reconcile_checked_at", at.UTC()).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
