package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the money side of an order, tracked next to OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// IsSettled is true once money has been received. A settled order never
// goes back to PENDING or FAILED.
func (p PaymentStatus) IsSettled() bool { return p == PaymentStatusPaid }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	p := PaymentStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return p, nil
}
