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

const defaultAutoConfirmAfter = 48 * time.Hour

type AutoConfirmJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Lifecycle statusApplier
	Metrics   *metrics.CronJobMetrics
	After     time.Duration
	BatchSize int
}

// NewAutoConfirmJob builds the job that confirms orders shipped long enough
// ago without a customer confirmation.
func NewAutoConfirmJob(params AutoConfirmJobParams) (Job, error) {
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
	after := params.After
	if after <= 0 {
		after = defaultAutoConfirmAfter
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	job := &autoConfirmJob{
		lifecycle: params.Lifecycle,
		after:     after,
		now:       time.Now,
	}
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

type autoConfirmJob struct {
	batch     orderBatch
	lifecycle statusApplier
	after     time.Duration
	now       func() time.Time
}

func (j *autoConfirmJob) Name() string { return "auto-confirm" }

func (j *autoConfirmJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	list := func(ctx context.Context, limit int, exclude []uuid.UUID) ([]models.Order, error) {
		return j.batch.orders.ListShippedBefore(ctx, cutoff, limit, exclude)
	}
	apply := func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusShipped || order.LastStatusChangeAt.After(cutoff) {
			return errSkipOrder
		}
		return j.lifecycle.Apply(ctx, tx, order, orders.StatusChange{
			To:      enums.OrderStatusConfirmed,
			Trigger: orders.TriggerSystem,
			Actor:   types.ActorSystem,
			Reason:  "auto-confirmed after delivery window",
		})
	}
	return j.batch.run(ctx, list, apply)
}
