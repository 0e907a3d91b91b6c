package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Trigger names who or what is asking for a status change.
type Trigger string

const (
	TriggerCustomer      Trigger = "customer"
	TriggerAdmin         Trigger = "admin"
	TriggerGateway       Trigger = "gateway"
	TriggerProofRejected Trigger = "proof_rejected"
	TriggerSystem        Trigger = "system"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusWaitingPayment: {
		enums.OrderStatusWaitingPaymentConfirmation,
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusWaitingPaymentConfirmation: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
		enums.OrderStatusWaitingPayment,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusConfirmed,
	},
}

type edge struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

// restricted edges may only be taken by one trigger.
var restricted = map[edge]Trigger{
	{enums.OrderStatusWaitingPayment, enums.OrderStatusProcessing}:                 TriggerGateway,
	{enums.OrderStatusWaitingPaymentConfirmation, enums.OrderStatusWaitingPayment}: TriggerProofRejected,
}

// CanTransition reports whether trigger may move an order from one status
// to another.
func CanTransition(from, to enums.OrderStatus, trigger Trigger) bool {
	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	if required, ok := restricted[edge{from, to}]; ok {
		return trigger == required
	}
	return true
}

// NextStatuses lists every status reachable from status, whatever the trigger.
func NextStatuses(status enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, len(transitions[status]))
	copy(out, transitions[status])
	return out
}
