package vouchers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// NormalizeCode is the canonical form codes are stored and matched in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository reads vouchers and counts their usage.
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

// FindByCodes returns the vouchers matching codes, keyed by normalized code.
// Unknown codes are simply absent from the map.
func (r *Repository) FindByCodes(ctx context.Context, codes []string) (map[string]models.Voucher, error) {
	out := make(map[string]models.Voucher, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, NormalizeCode(code))
	}

	var rows []models.Voucher
	if err := r.db.WithContext(ctx).Where("code IN ?", normalized).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[NormalizeCode(row.Code)] = row
	}
	return out, nil
}

// IncrementUsageTx counts one use unless the limit is already reached. It
// reports false when the voucher was exhausted by a concurrent order.
func (r *Repository) IncrementUsageTx(ctx context.Context, tx *gorm.DB, voucherID uuid.UUID) (bool, error) {
	res := r.WithTx(tx).db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", voucherID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
