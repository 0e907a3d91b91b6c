package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// StatusChange is one requested transition. Optional fields are written in
// the same UPDATE as the status.
type StatusChange struct {
	To             enums.OrderStatus
	Trigger        Trigger
	Actor          string
	ActorRole      string
	Reason         string
	PaymentStatus  *enums.PaymentStatus
	TrackingNumber *string
	CancelReason   *string
}

// Lifecycle applies status changes to locked orders. Order, payment and
// cron code all move orders through it so every transition is checked,
// recorded in history and published.
type Lifecycle struct {
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewLifecycle wires the transition applier.
func NewLifecycle(repo Repository, outbox outboxPublisher, logg *logger.Logger) (*Lifecycle, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Lifecycle{repo: repo, outbox: outbox, logg: logg, now: time.Now}, nil
}

// Apply moves order to change.To inside tx. The caller must hold the row
// lock from Repository.LockByID or LockByNumber. On success order reflects
// the new state.
func (l *Lifecycle) Apply(ctx context.Context, tx *gorm.DB, order *models.Order, change StatusChange) error {
	from := order.Status
	if !CanTransition(from, change.To, change.Trigger) {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", from, change.To).
			WithDetails(map[string]any{"from": from, "to": change.To})
	}

	now := l.now().UTC()
	history := order.StatusHistory.Append(change.To, now, change.Actor)
	updates := map[string]any{
		"status":                change.To,
		"status_history":        history,
		"last_status_change_at": now,
		"last_changed_by":       change.Actor,
		"updated_at":            now,
	}
	if change.PaymentStatus != nil {
		updates["payment_status"] = *change.PaymentStatus
	}
	if change.TrackingNumber != nil {
		updates["tracking_number"] = *change.TrackingNumber
	}
	if change.CancelReason != nil {
		updates["cancel_reason"] = *change.CancelReason
	}

	ok, err := l.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	order.Status = change.To
	order.StatusHistory = history
	order.LastStatusChangeAt = now
	order.LastChangedBy = change.Actor
	order.UpdatedAt = now
	if change.PaymentStatus != nil {
		order.PaymentStatus = *change.PaymentStatus
	}
	if change.TrackingNumber != nil {
		order.TrackingNumber = change.TrackingNumber
	}
	if change.CancelReason != nil {
		order.CancelReason = change.CancelReason
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: change.Actor, Role: change.ActorRole},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			From:          from,
			To:            change.To,
			PaymentStatus: order.PaymentStatus,
			Actor:         change.Actor,
			Reason:        change.Reason,
			ChangedAt:     now,
		},
		OccurredAt: now,
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}

	if l.logg != nil {
		logCtx := l.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber)
		logCtx = l.logg.WithFields(logCtx, map[string]any{
			"from":    from,
			"to":      change.To,
			"actor":   change.Actor,
			"trigger": change.Trigger,
		})
		l.logg.Info(logCtx, "order status changed")
	}
	return nil
}
