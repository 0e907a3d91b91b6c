package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and the read models
// order creation depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	RejectPendingProofs(ctx context.Context, orderID uuid.UUID, reviewer uuid.UUID, notes string, at time.Time) (int64, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, string, error)
	ListShippedBefore(ctx context.Context, cutoff time.Time, limit int, exclude []uuid.UUID) ([]models.Order, error)
	ListExpiredUnpaid(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.Order, error)
	FindAddress(ctx context.Context, id uuid.UUID) (*models.Address, error)
	FindShippingMethod(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error)
	ListCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
	ListActiveStores(ctx context.Context) ([]models.Store, error)
	FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger is the slice of the inventory service orders use.
type InventoryLedger interface {
	StockCheck(ctx context.Context, storeID uuid.UUID, items []inventory.StockRequirement) (inventory.StockCheckResult, error)
	DecrementForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error
	RestockForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error
}

// ShippingEstimator prices a shipment.
type ShippingEstimator interface {
	Estimate(ctx context.Context, req shipping.EstimateRequest) shipping.Estimate
}

// VoucherStore loads vouchers and counts their usage.
type VoucherStore interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]models.Voucher, error)
	IncrementUsageTx(ctx context.Context, tx *gorm.DB, voucherID uuid.UUID) (bool, error)
}
