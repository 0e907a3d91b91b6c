package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// maxNotificationBytes bounds the gateway notification body.
const maxNotificationBytes = 64 << 10

// PaymentGatewayService reconciles a raw gateway notification.
type PaymentGatewayService interface {
	Handle(ctx context.Context, payload []byte) (*payments.WebhookResult, error)
}

type webhookAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PaymentGateway receives asynchronous payment notifications. It always
// answers 200; failures are logged and reported in the body.
func PaymentGateway(svc PaymentGatewayService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			ack(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
		if err != nil {
			ack(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.Handle(ctx, payload)
		if err != nil {
			ack(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"outcome":        result.Outcome,
				"order_status":   result.OrderStatus,
				"payment_status": result.PaymentStatus,
			})
			logg.Info(logCtx, "payment_gateway.notification.handled")
		}
		responses.WriteJSON(w, http.StatusOK, webhookAck{Status: "ok"})
	}
}

// Reject acknowledges a notification that was turned away before reaching
// the service, keeping the always-200 contract.
func Reject(logg *logger.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		ack(r.Context(), logg, w, err)
	}
}

func ack(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	msg := meta.PublicMessage
	if meta.ExposeMessage && typed.Message() != "" {
		msg = typed.Message()
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"error_code":  typed.Code(),
			"http_status": meta.HTTPStatus,
		})
		logg.Error(logCtx, "payment_gateway.notification.failed", err)
	}
	responses.WriteJSON(w, http.StatusOK, webhookAck{Status: "error", Message: msg})
}
