package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots a product line at order time; it is never mutated.
type OrderItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName  string    `gorm:"column:product_name;not null"`
	Quantity     int       `gorm:"column:quantity;not null"`
	UnitPrice    int64     `gorm:"column:unit_price;not null"`
	UnitDiscount int64     `gorm:"column:unit_discount;not null;default:0"`
	Subtotal     int64     `gorm:"column:subtotal;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
