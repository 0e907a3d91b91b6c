package models

import (
	"time"

	"github.com/google/uuid"
)

// Inventory is the per-store stock counter for a product. Quantity is a
// cached projection of the stock journal and only moves with a journal row.
type Inventory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventories_product_store"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_inventories_product_store"`
	Quantity  int       `gorm:"column:quantity;not null;default:0;check:chk_inventories_quantity,quantity >= 0"`
	MinStock  int       `gorm:"column:min_stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLow reports whether stock sits at or under the minimum threshold.
func (i Inventory) IsLow() bool {
	return i.Quantity <= i.MinStock
}
