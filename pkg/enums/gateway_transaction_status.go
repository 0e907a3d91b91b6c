package enums

import "fmt"

// GatewayTransactionStatus is the transaction_status reported by the payment gateway.
type GatewayTransactionStatus string

const (
	GatewayStatusCapture    GatewayTransactionStatus = "capture"
	GatewayStatusSettlement GatewayTransactionStatus = "settlement"
	GatewayStatusPending    GatewayTransactionStatus = "pending"
	GatewayStatusDeny       GatewayTransactionStatus = "deny"
	GatewayStatusCancel     GatewayTransactionStatus = "cancel"
	GatewayStatusExpire     GatewayTransactionStatus = "expire"
	GatewayStatusFailure    GatewayTransactionStatus = "failure"
)

var validGatewayTransactionStatuses = []GatewayTransactionStatus{
	GatewayStatusCapture,
	GatewayStatusSettlement,
	GatewayStatusPending,
	GatewayStatusDeny,
	GatewayStatusCancel,
	GatewayStatusExpire,
	GatewayStatusFailure,
}

// String implements fmt.Stringer.
func (g GatewayTransactionStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayTransactionStatus.
func (g GatewayTransactionStatus) IsValid() bool {
	for _, candidate := range validGatewayTransactionStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayTransactionStatus converts raw input into a GatewayTransactionStatus.
func ParseGatewayTransactionStatus(value string) (GatewayTransactionStatus, error) {
	for _, candidate := range validGatewayTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway transaction status %q", value)
}
