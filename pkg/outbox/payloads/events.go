package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once the order row and its items commit.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	StoreID       uuid.UUID           `json:"store_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalAmount   int64               `json:"total_amount"`
	VoucherCodes  []string            `json:"voucher_codes,omitempty"`
}

// OrderStatusChangedEvent is emitted for every committed status transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Actor         string              `json:"actor"`
	Reason        string              `json:"reason,omitempty"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// PaymentReconciledEvent records how a gateway notification was applied.
type PaymentReconciledEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	OrderNumber       string              `json:"order_number"`
	TransactionID     string              `json:"transaction_id"`
	TransactionStatus string              `json:"transaction_status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	GrossAmount       int64               `json:"gross_amount"`
}

// StockAdjustedEvent is emitted for manual inventory adjustments.
type StockAdjustedEvent struct {
	InventoryID uuid.UUID              `json:"inventory_id"`
	ProductID   uuid.UUID              `json:"product_id"`
	StoreID     uuid.UUID              `json:"store_id"`
	Delta       int                    `json:"delta"`
	Type        enums.StockJournalType `json:"type"`
	Quantity    int                    `json:"quantity"`
	BelowMin    bool                   `json:"below_min"`
}
