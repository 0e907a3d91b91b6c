package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Voucher is a discount instrument with eligibility rules.
type Voucher struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Code               string                 `gorm:"column:code;not null;uniqueIndex:ux_vouchers_code"`
	Name               string                 `gorm:"column:name;not null"`
	Type               enums.VoucherType      `gorm:"column:type;type:text;not null"`
	ValueType          enums.VoucherValueType `gorm:"column:value_type;type:text;not null"`
	Value              decimal.Decimal        `gorm:"column:value;type:numeric(12,2);not null"`
	MinPurchase        int64                  `gorm:"column:min_purchase;not null;default:0"`
	MaxDiscount        *int64                 `gorm:"column:max_discount"`
	StartsAt           time.Time              `gorm:"column:starts_at;not null"`
	EndsAt             time.Time              `gorm:"column:ends_at;not null"`
	UsageLimit         *int                   `gorm:"column:usage_limit"`
	UsedCount          int                    `gorm:"column:used_count;not null;default:0"`
	EligibleProductIDs pq.StringArray         `gorm:"column:eligible_product_ids;type:text[]"`
	EligibleUserIDs    pq.StringArray         `gorm:"column:eligible_user_ids;type:text[]"`
	IsActive           bool                   `gorm:"column:is_active;not null"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
