package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultBatchSize = 100
	maxBatchesPerRun = 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, order *models.Order, change orders.StatusChange) error
}

// errSkipOrder tells the batch runner an order changed after it was listed.
var errSkipOrder = errors.New("order no longer eligible")

// orderBatch walks a candidate query in batches and transitions each order
// in its own transaction under the order row lock.
type orderBatch struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	metrics   *metrics.CronJobMetrics
	batchSize int
}

// listFunc returns up to limit candidates, leaving out the excluded IDs.
type listFunc func(ctx context.Context, limit int, exclude []uuid.UUID) ([]models.Order, error)

// applyFunc re-checks the locked order and transitions it, or returns
// errSkipOrder.
type applyFunc func(ctx context.Context, tx *gorm.DB, order *models.Order) error

func (b *orderBatch) run(ctx context.Context, list listFunc, apply applyFunc) error {
	var errs error
	processed, skipped, failed := 0, 0, 0
	// leftover holds orders skipped or failed this run. They are excluded
	// from later pages so they cannot crowd out the rows behind them.
	var leftover []uuid.UUID

	for batch := 0; batch < maxBatchesPerRun; batch++ {
		rows, err := list(ctx, b.batchSize, leftover)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: list candidates: %w", b.name, err))
			break
		}

		for i := range rows {
			if ctx.Err() != nil {
				return multierr.Append(errs, ctx.Err())
			}
			switch err := b.one(ctx, rows[i].ID, apply); {
			case err == nil:
				processed++
			case errors.Is(err, errSkipOrder) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
				skipped++
				leftover = append(leftover, rows[i].ID)
			default:
				failed++
				leftover = append(leftover, rows[i].ID)
				errs = multierr.Append(errs, fmt.Errorf("%s: order %s: %w", b.name, rows[i].ID, err))
			}
		}
		if len(rows) < b.batchSize {
			break
		}
	}

	b.metrics.AddProcessed(b.name, processed)
	logCtx := b.logg.WithFields(ctx, map[string]any{
		"processed": processed,
		"skipped":   skipped,
		"failed":    failed,
	})
	b.logg.Info(logCtx, b.name+" run complete")
	return errs
}

func (b *orderBatch) one(ctx context.Context, orderID uuid.UUID, apply applyFunc) error {
	return b.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := b.orders.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		return apply(ctx, tx, order)
	})
}
