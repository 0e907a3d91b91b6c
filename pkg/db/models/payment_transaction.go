package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentTransaction is the insert-only audit row for each gateway
// notification received, whatever its outcome.
type PaymentTransaction struct {
	ID                    uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID                      `gorm:"column:order_id;type:uuid;not null;index"`
	Provider              string                         `gorm:"column:provider;not null"`
	ProviderTransactionID string                         `gorm:"column:provider_transaction_id;not null"`
	ProviderOrderID       string                         `gorm:"column:provider_order_id;not null"`
	TransactionStatus     enums.GatewayTransactionStatus `gorm:"column:transaction_status;type:text;not null"`
	FraudStatus           *string                        `gorm:"column:fraud_status"`
	PaymentType           string                         `gorm:"column:payment_type;not null"`
	GrossAmount           int64                          `gorm:"column:gross_amount;not null"`
	TransactionTime       time.Time                      `gorm:"column:transaction_time;not null"`
	RawPayload            json.RawMessage                `gorm:"column:raw_payload;type:jsonb;not null"`
	CreatedAt             time.Time                      `gorm:"column:created_at;autoCreateTime"`
}
