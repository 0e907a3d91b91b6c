package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentProof is customer-submitted evidence of a manual bank transfer.
type PaymentProof struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	FileReference string                   `gorm:"column:file_reference;not null"`
	ContentType   string                   `gorm:"column:content_type;not null"`
	SizeBytes     int64                    `gorm:"column:size_bytes;not null"`
	Status        enums.PaymentProofStatus `gorm:"column:status;type:text;not null"`
	UploadedBy    uuid.UUID                `gorm:"column:uploaded_by;type:uuid;not null"`
	VerifiedBy    *uuid.UUID               `gorm:"column:verified_by;type:uuid"`
	VerifiedAt    *time.Time               `gorm:"column:verified_at"`
	Notes         *string                  `gorm:"column:notes"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
