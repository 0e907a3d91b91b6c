package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Store is a fulfilment location holding inventory.
type Store struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name       string         `gorm:"column:name;not null"`
	Location   types.GeoPoint `gorm:"column:location;not null"`
	RegionCode string         `gorm:"column:region_code;not null"`
	IsActive   bool           `gorm:"column:is_active;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
