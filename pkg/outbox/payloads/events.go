package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// OrderPaidEvent is emitted when the processor-confirmed payment is recorded.
type OrderPaidEvent struct {
	OrderID     uuid.UUID                `json:"order_id"`
	ServiceType string                   `json:"service_type"`
	ChapaRef    string                   `json:"chapa_ref"`
	Amount      decimal.Decimal          `json:"amount"`
	Currency    enums.Currency           `json:"currency"`
	PaidAt      time.Time                `json:"paid_at"`
	Trigger     enums.FulfillmentTrigger `json:"trigger"`
}

// OrderPaymentFailedEvent is emitted when checkout initialization is rejected by the processor.
type OrderPaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// OrderFulfilledEvent is emitted once a document url has been stored for the order.
type OrderFulfilledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ServiceType string    `json:"service_type"`
	PDFPath     string    `json:"pdf_path"`
	ExpiresAt   time.Time `json:"expires_at"`
	AIGenerated bool      `json:"ai_generated"`
	Attempt     int       `json:"attempt"`
}

// OrderRenderFailedEvent surfaces render or storage failures to operator tooling.
type OrderRenderFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Attempt int       `json:"attempt"`
	Stage   string    `json:"stage"`
	Error   string    `json:"error"`
}

// OrderArtifactRemovedEvent covers both the retention sweep and operator deletion.
type OrderArtifactRemovedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	PDFPath   string    `json:"pdf_path,omitempty"`
	RemovedAt time.Time `json:"removed_at"`
	Reason    string    `json:"reason"`
}
