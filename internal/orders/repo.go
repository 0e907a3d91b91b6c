package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a GORM-backed order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id") }).
		Preload("Vouchers").
		Preload("Proofs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID takes a row lock on the order for the rest of the transaction
// and loads its items.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByNumber is LockByID keyed by the public order number.
func (r *repository) LockByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "order_number = ?", orderNumber).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "order_number = ?", orderNumber).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) loadItems(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("product_id").
		Find(&order.Items).Error
}

// UpdateStatus writes updates only while the order still has status from.
// It reports false when another writer moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RejectPendingProofs closes every PENDING proof of an order and returns how
// many were touched.
func (r *repository) RejectPendingProofs(ctx context.Context, orderID uuid.UUID, reviewer uuid.UUID, notes string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentProofStatusPending).
		Updates(map[string]any{
			"status":      enums.PaymentProofStatusRejected,
			"verified_by": reviewer,
			"verified_at": at,
			"notes":       notes,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filter.PaymentMethod)
	}

	var rows []models.Order
	if err := pagination.Apply(q, "", cursor, params.Limit).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id") }).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}

// ListShippedBefore returns SHIPPED orders whose last change is at or
// before cutoff, oldest first. Orders in exclude are left out.
func (r *repository) ListShippedBefore(ctx context.Context, cutoff time.Time, limit int, exclude []uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := excludeIDs(r.db.WithContext(ctx), exclude).
		Where("status = ? AND last_status_change_at <= ?", enums.OrderStatusShipped, cutoff).
		Order("last_status_change_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListExpiredUnpaid returns gateway orders still waiting for payment after
// their expiry.
func (r *repository) ListExpiredUnpaid(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := excludeIDs(r.db.WithContext(ctx), exclude).
		Where("status = ? AND payment_method = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			enums.OrderStatusWaitingPayment, enums.PaymentMethodGateway, now).
		Order("expires_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func excludeIDs(q *gorm.DB, ids []uuid.UUID) *gorm.DB {
	if len(ids) == 0 {
		return q
	}
	return q.Where("id NOT IN ?", ids)
}

func (r *repository) FindAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.db.WithContext(ctx).First(&addr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *repository) FindShippingMethod(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error) {
	var method models.ShippingMethod
	if err := r.db.WithContext(ctx).First(&method, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

func (r *repository) ListActiveStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&stores).Error
	return stores, err
}

func (r *repository) FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}
