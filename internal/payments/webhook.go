package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// GatewayActor is recorded on transitions caused by gateway notifications.
const GatewayActor = "PAYMENT_GATEWAY"

// Outcome describes what a notification did to its order.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// WebhookResult is returned for every notification that reached an order.
type WebhookResult struct {
	Outcome       Outcome             `json:"outcome"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

type WebhookServiceParams struct {
	Orders    orders.Repository
	Payments  *Repository
	Tx        txRunner
	Lifecycle statusApplier
	Inventory stockLedger
	Outbox    outboxPublisher
	Metrics   *metrics.PaymentMetrics
	Logger    *logger.Logger
	Provider  string
	ServerKey string
}

// WebhookService reconciles gateway notifications with orders.
type WebhookService struct {
	orders    orders.Repository
	payments  *Repository
	tx        txRunner
	lifecycle statusApplier
	inventory stockLedger
	outbox    outboxPublisher
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	provider  string
	serverKey string
}

func NewWebhookService(params WebhookServiceParams) (*WebhookService, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if strings.TrimSpace(params.ServerKey) == "" {
		return nil, fmt.Errorf("gateway server key required")
	}
	provider := params.Provider
	if provider == "" {
		provider = "midtrans"
	}
	return &WebhookService{
		orders:    params.Orders,
		payments:  params.Payments,
		tx:        params.Tx,
		lifecycle: params.Lifecycle,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		provider:  provider,
		serverKey: params.ServerKey,
	}, nil
}

// Handle authenticates a raw notification, records it and applies it to the
// order. Replays are recorded again but never change the order twice.
func (s *WebhookService) Handle(ctx context.Context, payload []byte) (*WebhookResult, error) {
	n, err := ParseNotification(payload)
	if err != nil {
		s.metrics.IncWebhook("rejected")
		return nil, err
	}
	if !n.VerifySignature(s.serverKey) {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid notification signature")
	}
	amount, _ := n.Amount()

	order, err := s.orders.FindByNumber(ctx, n.OrderID)
	if err != nil {
		s.metrics.IncWebhook("unknown_order")
		return nil, mapOrderError(err)
	}
	ctx = s.logContext(ctx, order, n)

	if err := s.recordTransaction(ctx, order, n, amount, payload); err != nil {
		return nil, err
	}
	if amount != order.TotalAmount && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "order_total", order.TotalAmount), "gateway amount differs from order total")
	}

	mapped := MapGatewayStatus(enums.GatewayTransactionStatus(n.TransactionStatus), n.FraudStatus)
	var result *WebhookResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.orders.WithTx(tx).LockByNumber(ctx, n.OrderID)
		if err != nil {
			return mapOrderError(err)
		}
		outcome, err := s.applyGatewayOutcome(ctx, tx, locked, mapped, n)
		if err != nil {
			return err
		}
		if outcome == OutcomeApplied {
			if err := s.emitReconciled(ctx, tx, locked, n, amount); err != nil {
				return err
			}
		}
		result = &WebhookResult{Outcome: outcome, OrderStatus: locked.Status, PaymentStatus: locked.PaymentStatus}
		return nil
	})
	if err != nil {
		s.metrics.IncWebhook("error")
		return nil, err
	}

	s.metrics.IncWebhook(string(result.Outcome))
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "outcome", result.Outcome), "gateway notification processed")
	}
	return result, nil
}

func (s *WebhookService) recordTransaction(ctx context.Context, order *models.Order, n GatewayNotification, amount int64, payload []byte) error {
	raw := json.RawMessage(payload)
	if !json.Valid(raw) {
		raw = json.RawMessage("{}")
	}
	row := &models.PaymentTransaction{
		OrderID:               order.ID,
		Provider:              s.provider,
		ProviderTransactionID: n.TransactionID,
		ProviderOrderID:       n.OrderID,
		TransactionStatus:     enums.GatewayTransactionStatus(n.TransactionStatus),
		PaymentType:           n.PaymentType,
		GrossAmount:           amount,
		TransactionTime:       n.Time(),
		RawPayload:            raw,
	}
	if n.FraudStatus != "" {
		fraud := n.FraudStatus
		row.FraudStatus = &fraud
	}
	if err := s.payments.InsertTransaction(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment transaction")
	}
	return nil
}

// applyGatewayOutcome is the check-and-transition guard for one notification.
// The caller holds the order row lock.
func (s *WebhookService) applyGatewayOutcome(ctx context.Context, tx *gorm.DB, order *models.Order, mapped GatewayOutcome, n GatewayNotification) (Outcome, error) {
	if !order.PaymentMethod.SettlesViaWebhook() {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_method", order.PaymentMethod), "gateway notification for an order not paid through the gateway")
		}
		return OutcomeIgnored, nil
	}
	switch mapped.OrderStatus {
	case enums.OrderStatusProcessing:
		if order.Status == enums.OrderStatusCancelled {
			if s.logg != nil {
				s.logg.Warn(ctx, "payment settled for a cancelled order")
			}
			return OutcomeIgnored, nil
		}
		if order.PaymentStatus.IsSettled() || !order.Status.IsPrePayment() {
			return OutcomeDuplicate, nil
		}
		if err := s.inventory.DecrementForOrder(ctx, tx, order, GatewayActor); err != nil {
			return "", err
		}
		paid := enums.PaymentStatusPaid
		err := s.lifecycle.Apply(ctx, tx, order, orders.StatusChange{
			To:            enums.OrderStatusProcessing,
			Trigger:       orders.TriggerGateway,
			Actor:         GatewayActor,
			Reason:        "payment " + n.TransactionStatus,
			PaymentStatus: &paid,
		})
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil

	case enums.OrderStatusCancelled:
		if order.Status == enums.OrderStatusCancelled {
			return OutcomeDuplicate, nil
		}
		if order.PaymentStatus.IsSettled() || !order.Status.IsPrePayment() {
			return OutcomeIgnored, nil
		}
		failed := enums.PaymentStatusFailed
		reason := "payment " + n.TransactionStatus
		err := s.lifecycle.Apply(ctx, tx, order, orders.StatusChange{
			To:            enums.OrderStatusCancelled,
			Trigger:       orders.TriggerGateway,
			Actor:         GatewayActor,
			Reason:        reason,
			PaymentStatus: &failed,
			CancelReason:  &reason,
		})
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil

	default:
		if order.PaymentStatus == enums.PaymentStatusPending {
			return OutcomeDuplicate, nil
		}
		if order.PaymentStatus.IsSettled() || order.Status.IsTerminal() {
			return OutcomeIgnored, nil
		}
		now := time.Now().UTC()
		ok, err := s.orders.WithTx(tx).UpdateStatus(ctx, order.ID, order.Status, map[string]any{
			"payment_status": enums.PaymentStatusPending,
			"updated_at":     now,
		})
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		order.PaymentStatus = enums.PaymentStatusPending
		order.UpdatedAt = now
		return OutcomeApplied, nil
	}
}

func (s *WebhookService) emitReconciled(ctx context.Context, tx *gorm.DB, order *models.Order, n GatewayNotification, amount int64) error {
	now := time.Now().UTC()
	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentReconciled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: GatewayActor, Role: s.provider},
		Data: payloads.PaymentReconciledEvent{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			TransactionID:     n.TransactionID,
			TransactionStatus: n.TransactionStatus,
			PaymentStatus:     order.PaymentStatus,
			GrossAmount:       amount,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment reconciled event")
	}
	return nil
}

func (s *WebhookService) logContext(ctx context.Context, order *models.Order, n GatewayNotification) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber)
	ctx = s.logg.WithPayment(ctx, s.provider, n.TransactionID)
	return s.logg.WithFields(ctx, map[string]any{
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})
}
