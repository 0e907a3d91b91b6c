package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Address is an entry in a customer's address book.
type Address struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	RecipientName string         `gorm:"column:recipient_name;not null"`
	Phone         string         `gorm:"column:phone;not null"`
	Street        string         `gorm:"column:street;not null"`
	City          string         `gorm:"column:city;not null"`
	Province      string         `gorm:"column:province;not null"`
	PostalCode    string         `gorm:"column:postal_code;not null"`
	RegionCode    string         `gorm:"column:region_code;not null"`
	Location      types.GeoPoint `gorm:"column:location;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// Snapshot copies the address into the form stored on orders.
func (a Address) Snapshot() types.AddressSnapshot {
	return types.AddressSnapshot{
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		Street:        a.Street,
		City:          a.City,
		Province:      a.Province,
		PostalCode:    a.PostalCode,
		RegionCode:    a.RegionCode,
		Location:      a.Location,
	}
}
