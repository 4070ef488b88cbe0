package enums

import "fmt"

// OrderStatus tracks the payment side of an order.
type OrderStatus string

const (
	OrderStatusDraft   OrderStatus = "DRAFT"
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
// PAID is terminal. A FAILED order may be retried into PENDING, and any unpaid
// order may become PAID once the processor confirms the charge.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPaid:
		return false
	case OrderStatusDraft:
		return next == OrderStatusPending || next == OrderStatusPaid
	case OrderStatusPending:
		return next == OrderStatusPending || next == OrderStatusPaid || next == OrderStatusFailed
	case OrderStatusFailed:
		return next == OrderStatusPending || next == OrderStatusPaid
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
