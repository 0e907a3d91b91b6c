package enums

import "fmt"

// PaymentProofStatus tracks the review state of an uploaded bank-transfer proof.
type PaymentProofStatus string

const (
	PaymentProofStatusPending  PaymentProofStatus = "PENDING"
	PaymentProofStatusVerified PaymentProofStatus = "VERIFIED"
	PaymentProofStatusRejected PaymentProofStatus = "REJECTED"
)

var validPaymentProofStatuses = []PaymentProofStatus{
	PaymentProofStatusPending,
	PaymentProofStatusVerified,
	PaymentProofStatusRejected,
}

// String implements fmt.Stringer.
func (p PaymentProofStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProofStatus.
func (p PaymentProofStatus) IsValid() bool {
	for _, candidate := range validPaymentProofStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProofStatus converts raw input into a PaymentProofStatus.
func ParsePaymentProofStatus(value string) (PaymentProofStatus, error) {
	for _, candidate := range validPaymentProofStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment proof status %q", value)
}
