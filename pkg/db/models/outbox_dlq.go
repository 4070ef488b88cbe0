package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// OutboxDLQ is a parked outbox row. It copies the event as it was when the
// publisher gave up, so it can be replayed by hand after the cause is fixed.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;index:outbox_dlq_event_idx"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count"`
	FailedAt      time.Time                  `gorm:"column:failed_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

// Message returns the stored error text, or "" when none was recorded.
func (d OutboxDLQ) Message() string {
	if d.ErrorMessage == nil {
		return ""
	}
	return *d.ErrorMessage
}
