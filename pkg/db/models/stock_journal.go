package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// StockJournal is an append-only stock movement. Delta is signed.
type StockJournal struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID uuid.UUID              `gorm:"column:inventory_id;type:uuid;not null;index"`
	Delta       int                    `gorm:"column:delta;not null"`
	Type        enums.StockJournalType `gorm:"column:type;type:text;not null"`
	Note        string                 `gorm:"column:note;not null;default:''"`
	ReferenceID *uuid.UUID             `gorm:"column:reference_id;type:uuid;index"`
	CreatedBy   string                 `gorm:"column:created_by;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
