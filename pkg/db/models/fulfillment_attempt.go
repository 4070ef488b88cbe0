package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// FulfillmentAttempt is one ledger row per claimed enrichment/render run.
type FulfillmentAttempt struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	Attempt    int                      `gorm:"column:attempt;not null"`
	Trigger    enums.FulfillmentTrigger `gorm:"column:trigger;type:text;not null"`
	Outcome    enums.FulfillmentState   `gorm:"column:outcome;type:text;not null"`
	Enriched   bool                     `gorm:"column:enriched;not null;default:false"`
	Error      *string                  `gorm:"column:error"`
	StartedAt  time.Time                `gorm:"column:started_at;not null"`
	FinishedAt *time.Time               `gorm:"column:finished_at"`
	DurationMS *int64                   `gorm:"column:duration_ms"`
}

// TableName pins the gorm table name.
func (FulfillmentAttempt) TableName() string { return "fulfillment_attempts" }
