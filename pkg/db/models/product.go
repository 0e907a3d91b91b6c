package models

import (
	"time"

	"github.com/google/uuid"
)

// Product carries the live price that order items snapshot.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Price          int64     `gorm:"column:price;not null"`
	DiscountAmount int64     `gorm:"column:discount_amount;not null;default:0"`
	WeightGrams    int       `gorm:"column:weight_grams;not null;default:0"`
	IsActive       bool      `gorm:"column:is_active;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
