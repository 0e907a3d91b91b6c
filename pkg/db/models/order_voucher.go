package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderVoucher joins an order to a voucher it consumed, with the amount applied.
type OrderVoucher struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VoucherID      uuid.UUID `gorm:"column:voucher_id;type:uuid;not null"`
	VoucherCode    string    `gorm:"column:voucher_code;not null"`
	DiscountAmount int64     `gorm:"column:discount_amount;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
