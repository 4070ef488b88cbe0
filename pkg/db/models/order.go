package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// FormData is the customer's structured input for an order. Enrichment merges keys into it.
type FormData map[string]any

// Order is the central fulfillment record. TxRef always equals ID.
type Order struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TxRef                string                 `gorm:"column:tx_ref;type:text;not null;uniqueIndex"`
	ServiceType          string                 `gorm:"column:service_type;type:text;not null"`
	Status               enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'DRAFT'"`
	FulfillmentState     enums.FulfillmentState `gorm:"column:fulfillment_state;type:text;not null;default:'NOT_STARTED'"`
	Amount               decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency             enums.Currency         `gorm:"column:currency;type:text;not null;default:'ETB'"`
	FormData             FormData               `gorm:"column:form_data;type:jsonb;serializer:json"`
	CustomerName         *string                `gorm:"column:customer_name"`
	CustomerEmail        *string                `gorm:"column:customer_email"`
	CustomerPhone        *string                `gorm:"column:customer_phone"`
	ChapaRef             *string                `gorm:"column:chapa_ref"`
	PaidAt               *time.Time             `gorm:"column:paid_at"`
	AIGenerated          bool                   `gorm:"column:ai_generated;not null;default:false"`
	AIGeneratedAt        *time.Time             `gorm:"column:ai_generated_at"`
	PDFURL               *string                `gorm:"column:pdf_url"`
	PDFPath              *string                `gorm:"column:pdf_path"`
	PDFSignedAt          *time.Time             `gorm:"column:pdf_signed_at"`
	ExpiresAt            *time.Time             `gorm:"column:expires_at"`
	FulfillmentClaimedAt *time.Time             `gorm:"column:fulfillment_claimed_at"`
	FulfillmentAttempts  int                    `gorm:"column:fulfillment_attempts;not null;default:0"`
	FulfillmentLastError *string                `gorm:"column:fulfillment_last_error"`
	ReconcileCheckedAt   *time.Time             `gorm:"column:reconcile_checked_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the gorm table name.
func (Order) TableName() string { return "orders" }

// HasArtifact reports whether a document url is currently recorded.
func (o *Order) HasArtifact() bool {
	return o != nil && o.PDFURL != nil && *o.PDFURL != ""
}
