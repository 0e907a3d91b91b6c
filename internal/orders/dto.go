package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const (
	maxVoucherCodes = 3
	maxNotesLength  = 500
	maxReasonLength = 500
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// ID is the value recorded in status history and journals.
func (a Actor) ID() string {
	return a.UserID.String()
}

func (a Actor) trigger() Trigger {
	if a.Role.IsStaff() {
		return TriggerAdmin
	}
	return TriggerCustomer
}

// CreateInput is a checkout request for the caller's current cart.
type CreateInput struct {
	UserID           uuid.UUID
	AddressID        uuid.UUID
	ShippingMethodID uuid.UUID
	PaymentMethod    enums.PaymentMethod
	VoucherCodes     []string
	Notes            string
}

// ListFilter narrows order listings. Nil fields do not filter.
type ListFilter struct {
	UserID        *uuid.UUID
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
}

// ListQuery is the typed listing request controllers build from the query
// string.
type ListQuery struct {
	Status *enums.OrderStatus
	Cursor string
	Limit  int
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ShipInput hands a PROCESSING order to the courier.
type ShipInput struct {
	OrderID        uuid.UUID
	TrackingNumber string
	Actor          Actor
}

// CancelInput cancels an order that has not shipped.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}
