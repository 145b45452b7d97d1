package notify

import (
	"context"
	"time"
)

// Event types published to operators
const (
	EventNewReservation       = "new_reservation"
	EventDepositReceived      = "deposit_received"
	EventLowStock             = "low_stock"
	EventReservationCancelled = "reservation_cancelled"
	EventDepositVerified      = "deposit_verified"
	EventReservationApproved  = "reservation_approved"
	EventReservationRejected  = "reservation_rejected"
	EventReservationCompleted = "reservation_completed"
	EventReservationExpired   = "reservation_expired"
	EventReservationExpiring  = "reservation_expiring"
)

// Event is a fire-and-forget operator notification.
type Event struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notifier delivers events. Emit must not block the caller and has no
// error result: a failed delivery never affects the operation that raised it.
type Notifier interface {
	Emit(ctx context.Context, event Event)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}

// Multi fans an event out to every wrapped notifier.
type Multi []Notifier

func (m Multi) Emit(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	for _, n := range m {
		n.Emit(ctx, event)
	}
}
