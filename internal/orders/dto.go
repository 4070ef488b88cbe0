package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// CreateDraftInput is the intake payload from the storefront wizard.
type CreateDraftInput struct {
	ServiceType   string
	FormData      models.FormData
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Contact is the checkout form's customer block.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// VerifiedPayment carries processor-confirmed fields into the state machine.
type VerifiedPayment struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      enums.Currency
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type InitiateResult struct {
	CheckoutURL string `json:"checkout_url"`
}

// Outcome classifies a fulfillment call.
type Outcome string

const (
	OutcomeFulfilled        Outcome = "fulfilled"
	OutcomeAlreadyFulfilled Outcome = "already_fulfilled"
	OutcomeInProgress       Outcome = "in_progress"
	OutcomeRenderFailed     Outcome = "render_failed"
	OutcomeSkipped          Outcome = "skipped"
)

// FulfillmentResult reports what a fulfillment call did. Err is set for render failures.
type FulfillmentResult struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Outcome   Outcome           `json:"outcome"`
	Status    enums.OrderStatus `json:"status"`
	PDFURL    *string           `json:"pdf_url,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Attempt   int               `json:"attempt,omitempty"`
	Enriched  bool              `json:"enriched"`
	Stage     string            `json:"failed_stage,omitempty"`
	Err       error             `json:"-"`
}

// Terminal reports whether the order now has its document.
func (r *FulfillmentResult) Terminal() bool {
	return r != nil && (r.Outcome == OutcomeFulfilled || r.Outcome == OutcomeAlreadyFulfilled)
}

type OrderDTO struct {
	ID                   uuid.UUID              `json:"id"`
	TxRef                string                 `json:"tx_ref"`
	ServiceType          string                 `json:"service_type"`
	Status               enums.OrderStatus      `json:"status"`
	FulfillmentState     enums.FulfillmentState `json:"fulfillment_state"`
	Amount               decimal.Decimal        `json:"amount"`
	Currency             enums.Currency         `json:"currency"`
	FormData             models.FormData        `json:"form_data,omitempty"`
	CustomerName         *string                `json:"customer_name,omitempty"`
	CustomerEmail        *string                `json:"customer_email,omitempty"`
	CustomerPhone        *string                `json:"customer_phone,omitempty"`
	ChapaRef             *string                `json:"chapa_ref,omitempty"`
	PaidAt               *time.Time             `json:"paid_at,omitempty"`
	AIGenerated          bool                   `json:"ai_generated"`
	AIGeneratedAt        *time.Time             `json:"ai_generated_at,omitempty"`
	PDFPath              *string                `json:"pdf_path,omitempty"`
	PDFSignedAt          *time.Time             `json:"pdf_signed_at,omitempty"`
	ExpiresAt            *time.Time             `json:"expires_at,omitempty"`
	FulfillmentAttempts  int                    `json:"fulfillment_attempts"`
	FulfillmentLastError *string                `json:"fulfillment_last_error,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

func orderToDTO(o *models.Order) OrderDTO {
	return OrderDTO{
		ID:                   o.ID,
		TxRef:                o.TxRef,
		ServiceType:          o.ServiceType,
		Status:               o.Status,
		FulfillmentState:     o.FulfillmentState,
		Amount:               o.Amount,
		Currency:             o.Currency,
		FormData:             o.FormData,
		CustomerName:         o.CustomerName,
		CustomerEmail:        o.CustomerEmail,
		CustomerPhone:        o.CustomerPhone,
		ChapaRef:             o.ChapaRef,
		PaidAt:               o.PaidAt,
		AIGenerated:          o.AIGenerated,
		AIGeneratedAt:        o.AIGeneratedAt,
		PDFPath:              o.PDFPath,
		PDFSignedAt:          o.PDFSignedAt,
		ExpiresAt:            o.ExpiresAt,
		FulfillmentAttempts:  o.FulfillmentAttempts,
		FulfillmentLastError: o.FulfillmentLastError,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

// StatusDTO is what the success page polls. It never includes the download url.
type StatusDTO struct {
	OrderID          uuid.UUID              `json:"order_id"`
	Status           enums.OrderStatus      `json:"status"`
	FulfillmentState enums.FulfillmentState `json:"fulfillment_state"`
	Processing       bool                   `json:"processing"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
}

type DownloadDTO struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AttemptDTO struct {
	Attempt    int                      `json:"attempt"`
	Trigger    enums.FulfillmentTrigger `json:"trigger"`
	Outcome    enums.FulfillmentState   `json:"outcome"`
	Enriched   bool                     `json:"enriched"`
	Error      *string                  `json:"error,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt *time.Time               `json:"finished_at,omitempty"`
	DurationMS *int64                   `json:"duration_ms,omitempty"`
}

// FulfillmentView is the operator's view of an order and its attempt ledger.
type FulfillmentView struct {
	Order    OrderDTO     `json:"order"`
	Attempts []AttemptDTO `json:"attempts"`
}

type EnrichDTO struct {
	OrderID     uuid.UUID       `json:"order_id"`
	FormData    models.FormData `json:"form_data"`
	GeneratedAt time.Time       `json:"generated_at"`
}
