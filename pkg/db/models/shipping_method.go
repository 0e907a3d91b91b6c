package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingMethod names the courier service a customer picks at checkout.
type ShippingMethod struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	CourierCode string    `gorm:"column:courier_code;not null"`
	ServiceCode string    `gorm:"column:service_code;not null;default:''"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
