package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists inventory counters and their journal.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to a GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, inv *models.Inventory) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindByProductAndStore returns gorm.ErrRecordNotFound when the store has
// never stocked the product.
func (r *Repository) FindByProductAndStore(ctx context.Context, productID, storeID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListForStore returns the counters of productIDs held by storeID.
func (r *Repository) ListForStore(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.Inventory, error) {
	if len(productIDs) == 0 {
		return []models.Inventory{}, nil
	}
	var rows []models.Inventory
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Find(&rows).Error
	return rows, err
}

// Subtract removes qty only when enough stock remains. It reports false when
// no row matched, which means the counter would have gone negative.
func (r *Repository) Subtract(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Add(ctx context.Context, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) InsertJournal(ctx context.Context, entry *models.StockJournal) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// RecentJournal lists the newest entries first.
func (r *Repository) RecentJournal(ctx context.Context, inventoryID uuid.UUID, limit int) ([]models.StockJournal, error) {
	var rows []models.StockJournal
	err := r.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// JournalSum is the ledger balance the counter must equal.
func (r *Repository) JournalSum(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.StockJournal{}).
		Where("inventory_id = ?", inventoryID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
