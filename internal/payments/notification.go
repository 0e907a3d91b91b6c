package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// GatewayTimeLayout is the layout of transaction_time in notifications.
const GatewayTimeLayout = "2006-01-02 15:04:05"

// gatewayZone is the offset the gateway reports transaction_time in.
var gatewayZone = time.FixedZone("WIB", 7*60*60)

var notificationValidator = validator.New()

// GatewayNotification is the asynchronous payment status callback.
type GatewayNotification struct {
	OrderID           string `json:"order_id" validate:"required,max=64"`
	TransactionStatus string `json:"transaction_status" validate:"required,oneof=capture settlement pending deny cancel expire failure"`
	TransactionTime   string `json:"transaction_time" validate:"required,datetime=2006-01-02 15:04:05"`
	SignatureKey      string `json:"signature_key" validate:"required,hexadecimal"`
	TransactionID     string `json:"transaction_id" validate:"required"`
	PaymentType       string `json:"payment_type" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required,numeric"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	FraudStatus       string `json:"fraud_status,omitempty" validate:"omitempty,oneof=accept challenge deny"`
}

// ParseNotification decodes and validates a raw callback body. Unknown
// fields are ignored.
func ParseNotification(body []byte) (GatewayNotification, error) {
	var n GatewayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return GatewayNotification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body")
	}
	if err := notificationValidator.Struct(n); err != nil {
		details := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return GatewayNotification{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification").WithDetails(details)
	}
	if _, err := n.Amount(); err != nil {
		return GatewayNotification{}, err
	}
	return n, nil
}

// Amount returns gross_amount in whole rupiah.
func (n GatewayNotification) Amount() (int64, error) {
	amount, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gross_amount")
	}
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "gross_amount %s is not a whole non-negative amount", n.GrossAmount)
	}
	return amount.IntPart(), nil
}

// Time parses transaction_time and returns it in UTC.
func (n GatewayNotification) Time() time.Time {
	t, err := time.ParseInLocation(GatewayTimeLayout, n.TransactionTime, gatewayZone)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Signature computes hex(SHA512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the notification signature in constant time.
func (n GatewayNotification) VerifySignature(serverKey string) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// GatewayOutcome is what a notification means for the order. An empty
// OrderStatus leaves the order where it is.
type GatewayOutcome struct {
	PaymentStatus enums.PaymentStatus
	OrderStatus   enums.OrderStatus
}

// MapGatewayStatus translates transaction and fraud status.
func MapGatewayStatus(status enums.GatewayTransactionStatus, fraud string) GatewayOutcome {
	switch status {
	case enums.GatewayStatusCapture:
		if fraud == "challenge" {
			return GatewayOutcome{PaymentStatus: enums.PaymentStatusPending}
		}
		if fraud == "deny" {
			return GatewayOutcome{PaymentStatus: enums.PaymentStatusFailed, OrderStatus: enums.OrderStatusCancelled}
		}
		return GatewayOutcome{PaymentStatus: enums.PaymentStatusPaid, OrderStatus: enums.OrderStatusProcessing}
	case enums.GatewayStatusSettlement:
		return GatewayOutcome{PaymentStatus: enums.PaymentStatusPaid, OrderStatus: enums.OrderStatusProcessing}
	case enums.GatewayStatusDeny, enums.GatewayStatusCancel, enums.GatewayStatusExpire, enums.GatewayStatusFailure:
		return GatewayOutcome{PaymentStatus: enums.PaymentStatusFailed, OrderStatus: enums.OrderStatusCancelled}
	default:
		return GatewayOutcome{PaymentStatus: enums.PaymentStatusPending}
	}
}
