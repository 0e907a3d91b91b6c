package types

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ActorSystem is recorded when a transition is made by a scheduled job.
const ActorSystem = "SYSTEM"

// StatusHistoryEntry is one recorded order transition.
type StatusHistoryEntry struct {
	Status enums.OrderStatus `json:"status"`
	At     time.Time         `json:"at"`
	Actor  string            `json:"actor"`
}

// StatusHistory is the ordered, append-only audit trail of an order.
type StatusHistory []StatusHistoryEntry

// Append returns the history with a new entry at the end.
func (h StatusHistory) Append(status enums.OrderStatus, at time.Time, actor string) StatusHistory {
	next := make(StatusHistory, len(h), len(h)+1)
	copy(next, h)
	return append(next, StatusHistoryEntry{Status: status, At: at.UTC(), Actor: actor})
}

// Last returns the most recent entry.
func (h StatusHistory) Last() (StatusHistoryEntry, bool) {
	if len(h) == 0 {
		return StatusHistoryEntry{}, false
	}
	return h[len(h)-1], true
}

// Statuses lists the recorded statuses in order.
func (h StatusHistory) Statuses() []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, len(h))
	for _, entry := range h {
		out = append(out, entry.Status)
	}
	return out
}
