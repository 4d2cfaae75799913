// Package notify fans an appointment event out to its authorized
// recipients: the doctor, the patient, and every active receptionist in
// the appointment's organization. Each recipient gets one durable
// notification row and one publish on their real-time channel. Delivery
// is best-effort and fully decoupled from the transaction that produced
// the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const KindAppointmentUpdate = "appointment_update"
const KindAppointmentReminder = "appointment_reminder"

// Notification is one per-recipient message.
type Notification struct {
	ID          uuid.UUID      `json:"id"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
}

// Store persists notifications so they survive a client disconnect.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]Notification, error)
}

// Publisher pushes a notification onto the recipient's real-time
// channel. Delivery past the channel boundary is someone else's problem.
type Publisher interface {
	Publish(ctx context.Context, recipientID uuid.UUID, n Notification) error
}

// ChannelFor names the real-time channel for a recipient.
func ChannelFor(recipientID uuid.UUID) string {
	return "notifications:" + recipientID.String()
}
