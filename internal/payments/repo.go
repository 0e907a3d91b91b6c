package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists payment proofs and gateway audit rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateProof(ctx context.Context, proof *models.PaymentProof) error {
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *Repository) FindProof(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).First(&proof, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

// ReviewProof moves a PENDING proof to its final status. It reports false
// when the proof was already reviewed.
func (r *Repository) ReviewProof(ctx context.Context, id uuid.UUID, status enums.PaymentProofStatus, reviewer uuid.UUID, notes *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Where("id = ? AND status = ?", id, enums.PaymentProofStatusPending).
		Updates(map[string]any{
			"status":      status,
			"verified_by": reviewer,
			"verified_at": at,
			"notes":       notes,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *Repository) ListTransactions(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
