package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type statusApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, order *models.Order, change orders.StatusChange) error
}

type stockLedger interface {
	DecrementForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error
}
