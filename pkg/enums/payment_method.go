package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is chosen at checkout and fixed for the life of the order.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodGateway      PaymentMethod = "PAYMENT_GATEWAY"
)

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodBankTransfer, PaymentMethodGateway:
		return true
	}
	return false
}

// RequiresProof reports whether payment is confirmed by an admin reviewing
// an uploaded receipt.
func (p PaymentMethod) RequiresProof() bool { return p == PaymentMethodBankTransfer }

// SettlesViaWebhook reports whether payment is confirmed by gateway
// notifications. Such orders also expire when left unpaid.
func (p PaymentMethod) SettlesViaWebhook() bool { return p == PaymentMethodGateway }

// ParsePaymentMethod accepts any casing and surrounding whitespace.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	p := PaymentMethod(strings.ToUpper(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return p, nil
}
