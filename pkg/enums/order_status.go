package enums

import "fmt"

// OrderStatus tracks where an order sits in its lifecycle.
type OrderStatus string

const (
	OrderStatusWaitingPayment             OrderStatus = "WAITING_PAYMENT"
	OrderStatusWaitingPaymentConfirmation OrderStatus = "WAITING_PAYMENT_CONFIRMATION"
	OrderStatusProcessing                 OrderStatus = "PROCESSING"
	OrderStatusShipped                    OrderStatus = "SHIPPED"
	OrderStatusConfirmed                  OrderStatus = "CONFIRMED"
	OrderStatusCancelled                  OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusWaitingPayment,
	OrderStatusWaitingPaymentConfirmation,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusConfirmed,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// IsTerminal reports whether no further transition can leave this status.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusConfirmed || o == OrderStatusCancelled
}

// IsPrePayment reports whether no stock has been taken for the order yet.
func (o OrderStatus) IsPrePayment() bool {
	return o == OrderStatusWaitingPayment || o == OrderStatusWaitingPaymentConfirmation
}
