package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const paymentExpiredReason = "payment expired"

type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Lifecycle statusApplier
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewOrderExpiryJob builds the job that cancels gateway orders whose
// payment window has passed. No stock was taken for them, so none is
// returned.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	job := &orderExpiryJob{lifecycle: params.Lifecycle, now: time.Now}
	job.batch = orderBatch{
		name:      job.Name(),
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		metrics:   params.Metrics,
		batchSize: batchSize,
	}
	return job, nil
}

type orderExpiryJob struct {
	batch     orderBatch
	lifecycle statusApplier
	now       func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	list := func(ctx context.Context, limit int, exclude []uuid.UUID) ([]models.Order, error) {
		return j.batch.orders.ListExpiredUnpaid(ctx, now, limit, exclude)
	}
	apply := func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusWaitingPayment ||
			!order.PaymentMethod.SettlesViaWebhook() ||
			order.ExpiresAt == nil || order.ExpiresAt.After(now) {
			return errSkipOrder
		}
		failed := enums.PaymentStatusFailed
		reason := paymentExpiredReason
		return j.lifecycle.Apply(ctx, tx, order, orders.StatusChange{
			To:            enums.OrderStatusCancelled,
			Trigger:       orders.TriggerSystem,
			Actor:         types.ActorSystem,
			Reason:        reason,
			PaymentStatus: &failed,
			CancelReason:  &reason,
		})
	}
	return j.batch.run(ctx, list, apply)
}
