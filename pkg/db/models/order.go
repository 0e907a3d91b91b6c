package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a single customer purchase and its fulfilment state. Orders are
// never deleted; cancellation is a terminal status.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID            uuid.UUID             `gorm:"column:store_id;type:uuid;not null"`
	ShippingMethodID   uuid.UUID             `gorm:"column:shipping_method_id;type:uuid;not null"`
	ShippingAddress    types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;not null"`
	Status             enums.OrderStatus     `gorm:"column:status;type:text;not null;index"`
	PaymentMethod      enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus      enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	SubtotalAmount     int64                 `gorm:"column:subtotal_amount;not null"`
	ShippingCost       int64                 `gorm:"column:shipping_cost;not null"`
	DiscountAmount     int64                 `gorm:"column:discount_amount;not null;default:0"`
	TotalAmount        int64                 `gorm:"column:total_amount;not null"`
	ShippingSource     enums.ShippingSource  `gorm:"column:shipping_source;type:text;not null"`
	Notes              *string               `gorm:"column:notes"`
	TrackingNumber     *string               `gorm:"column:tracking_number"`
	CancelReason       *string               `gorm:"column:cancel_reason"`
	ExpiresAt          *time.Time            `gorm:"column:expires_at"`
	StatusHistory      types.StatusHistory   `gorm:"column:status_history;type:jsonb;not null"`
	LastStatusChangeAt time.Time             `gorm:"column:last_status_change_at;not null"`
	LastChangedBy      string                `gorm:"column:last_changed_by;not null"`
	Items              []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	Proofs             []PaymentProof        `gorm:"foreignKey:OrderID"`
	Vouchers           []OrderVoucher        `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
