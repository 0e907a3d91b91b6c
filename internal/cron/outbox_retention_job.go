package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	retentionChunkSize     = 500
	maxRetentionChunks     = 20
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Metrics    *metrics.CronJobMetrics
	Retention  time.Duration
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type outboxRetentionJob struct {
	OutboxRetentionJobParams
	now func() time.Time
}

// NewOutboxRetentionJob builds the job that prunes delivered outbox rows.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	if params.Retention <= 0 {
		params.Retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{OutboxRetentionJobParams: params, now: time.Now}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in short transactions so the publisher is never blocked
// behind one large delete. Rows left over are picked up on the next tick.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.Retention)
	var total int64
	chunks := 0
	for ; chunks < maxRetentionChunks; chunks++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.DB.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.Repository.DeletePublishedBefore(ctx, tx, cutoff, retentionChunkSize)
			deleted = n
			return err
		})
		if err != nil {
			j.Metrics.AddProcessed(j.Name(), int(total))
			return fmt.Errorf("outbox retention: %w", err)
		}
		total += deleted
		if deleted < retentionChunkSize {
			chunks++
			break
		}
	}

	j.Metrics.AddProcessed(j.Name(), int(total))
	j.Logger.Info(j.Logger.WithFields(ctx, map[string]any{
		"cutoff":       cutoff.Format(time.RFC3339),
		"rows_deleted": total,
		"chunks":       chunks,
	}), "outbox retention cleanup complete")
	return nil
}
