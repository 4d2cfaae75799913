// Package audit defines the append-only audit trail written alongside
// every state-changing scheduling action. Entries are recorded in the
// same transaction as the change they describe: a rolled-back transition
// leaves no audit row, and a failed audit write aborts the transition.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionAppointmentCreated   Action = "appointment_created"
	ActionAppointmentUpdated   Action = "appointment_updated"
	ActionAppointmentCancelled Action = "appointment_cancelled"
	ActionAppointmentCompleted Action = "appointment_completed"
	ActionDataExported         Action = "data_exported"
	ActionSystemAction         Action = "system_action"
)

// Entry is one immutable audit record. ActorID is nil for
// system-initiated actions. Timestamp is assigned by the store.
type Entry struct {
	ID         int64
	ActorID    *uuid.UUID
	Action     Action
	Timestamp  time.Time
	Details    string
	ObjectType string
	ObjectID   *uuid.UUID
}

const maxDetailsLen = 500

// SanitizeDetails strips newlines and control characters from free-text
// details so a rendered audit trail cannot be forged by embedded input,
// and bounds the stored length.
func SanitizeDetails(details string) string {
	var b strings.Builder
	b.Grow(len(details))
	for _, r := range details {
		if r == '\n' || r == '\r' || r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if len(s) > maxDetailsLen {
		s = s[:maxDetailsLen]
	}
	return s
}
