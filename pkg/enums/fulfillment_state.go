package enums

import "fmt"

// FulfillmentState tracks document production for a paid order, separately from payment.
type FulfillmentState string

const (
	FulfillmentNotStarted   FulfillmentState = "NOT_STARTED"
	FulfillmentEnriching    FulfillmentState = "ENRICHING"
	FulfillmentRendering    FulfillmentState = "RENDERING"
	FulfillmentDone         FulfillmentState = "DONE"
	FulfillmentRenderFailed FulfillmentState = "RENDER_FAILED"
)

var validFulfillmentStates = []FulfillmentState{
	FulfillmentNotStarted,
	FulfillmentEnriching,
	FulfillmentRendering,
	FulfillmentDone,
	FulfillmentRenderFailed,
}

// String implements fmt.Stringer.
func (f FulfillmentState) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentState.
func (f FulfillmentState) IsValid() bool {
	for _, candidate := range validFulfillmentStates {
		if candidate == f {
			return true
		}
	}
	return false
}

// InFlight reports whether an attempt currently holds the fulfillment claim.
func (f FulfillmentState) InFlight() bool {
	return f == FulfillmentEnriching || f == FulfillmentRendering
}

// ParseFulfillmentState converts raw input into a FulfillmentState.
func ParseFulfillmentState(value string) (FulfillmentState, error) {
	for _, candidate := range validFulfillmentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment state %q", value)
}

// FulfillmentTrigger records what started a fulfillment attempt.
type FulfillmentTrigger string

const (
	TriggerWebhook   FulfillmentTrigger = "webhook"
	TriggerReconcile FulfillmentTrigger = "reconcile"
	TriggerRetryJob  FulfillmentTrigger = "retry_job"
	TriggerOperator  FulfillmentTrigger = "operator"
)

// String implements fmt.Stringer.
func (t FulfillmentTrigger) String() string {
	return string(t)
}
