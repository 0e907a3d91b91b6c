package outbox

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const maxErrorLen = 1024

// ErrNotDeadLettered is returned by Requeue for an event with no DLQ entry.
var ErrNotDeadLettered = errors.New("outbox event is not dead-lettered")

// DLQRepository reads and writes outbox_dlq, the parking lot for events the
// publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("invalid dlq reason %q", entry.ErrorReason)
	}
	if entry.ErrorMessage != nil {
		msg := truncateError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByReason returns the most recent entries, optionally filtered by reason.
func (r *DLQRepository) ListByReason(ctx context.Context, reason enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error) {
	q := r.db.WithContext(ctx).Order("failed_at DESC")
	if reason != "" {
		q = q.Where("error_reason = ?", reason)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.OutboxDLQ
	return rows, q.Find(&rows).Error
}

// Requeue hands a dead-lettered event back to the publisher with a fresh
// attempt budget. The original outbox row is revived when retention has not
// removed it yet; otherwise it is rebuilt from the DLQ copy.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotDeadLettered
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ?", eventID).
			Updates(map[string]any{
				"published_at":  nil,
				"attempt_count": 0,
				"last_error":    nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			revived := models.OutboxEvent{
				ID:            entry.EventID,
				EventType:     entry.EventType,
				AggregateType: entry.AggregateType,
				AggregateID:   entry.AggregateID,
				Payload:       entry.Payload,
			}
			if err := tx.Create(&revived).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.OutboxDLQ{}, "id = ?", entry.ID).Error
	})
}

func truncateError(message string) string {
	if len(message) <= maxErrorLen {
		return message
	}
	cut := message[:maxErrorLen]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
