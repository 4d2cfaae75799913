package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsecal/scheduling/internal/appointment"
	"github.com/pulsecal/scheduling/internal/directory"
)

// Broadcaster computes the recipient set for an appointment event and
// dispatches one message per recipient. It implements
// appointment.Broadcaster.
type Broadcaster struct {
	dir       directory.Directory
	store     Store
	publisher Publisher
	log       zerolog.Logger
}

func NewBroadcaster(dir directory.Directory, store Store, publisher Publisher, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		dir:       dir,
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// AppointmentEvent fans the event out to the doctor, the patient and the
// organization's active receptionists. A failed dispatch to one
// recipient is logged and never blocks the others.
func (b *Broadcaster) AppointmentEvent(ctx context.Context, a *appointment.Appointment, eventType string) {
	for _, rcpt := range b.recipients(ctx, a) {
		b.dispatch(ctx, rcpt.id, Notification{
			Kind:  KindAppointmentUpdate,
			Title: "Appointment update",
			Body:  rcpt.message(eventType),
			Data: map[string]any{
				"appointment_id": a.ID.String(),
				"event_type":     eventType,
			},
		})
	}
}

// AppointmentReminder notifies only the patient that their confirmed
// appointment is coming up.
func (b *Broadcaster) AppointmentReminder(ctx context.Context, a *appointment.Appointment) {
	patient, err := b.dir.UserByID(ctx, a.PatientID)
	if err != nil || !patient.Active {
		return
	}

	b.dispatch(ctx, a.PatientID, Notification{
		Kind:  KindAppointmentReminder,
		Title: "Appointment reminder",
		Body:  fmt.Sprintf("Reminder: your appointment is at %s.", a.ScheduledAt.Format("3:04 PM, Jan 2")),
		Data: map[string]any{
			"appointment_id": a.ID.String(),
			"scheduled_at":   a.ScheduledAt.Format(time.RFC3339),
		},
	})
}

type recipient struct {
	id   uuid.UUID
	role directory.Role
}

func (r recipient) message(eventType string) string {
	switch r.role {
	case directory.RoleDoctor:
		return fmt.Sprintf("Appointment %s for you.", eventType)
	case directory.RolePatient:
		return fmt.Sprintf("Your appointment has been %s.", eventType)
	default:
		return fmt.Sprintf("Appointment %s in your organization.", eventType)
	}
}

func (b *Broadcaster) recipients(ctx context.Context, a *appointment.Appointment) []recipient {
	var out []recipient

	if doctor, err := b.dir.UserByID(ctx, a.DoctorID); err == nil && doctor.Active {
		out = append(out, recipient{id: doctor.ID, role: directory.RoleDoctor})
	} else if err != nil {
		b.log.Error().Err(err).Str("user_id", a.DoctorID.String()).Msg("doctor lookup failed during fan-out")
	}

	if patient, err := b.dir.UserByID(ctx, a.PatientID); err == nil && patient.Active {
		out = append(out, recipient{id: patient.ID, role: directory.RolePatient})
	} else if err != nil {
		b.log.Error().Err(err).Str("user_id", a.PatientID.String()).Msg("patient lookup failed during fan-out")
	}

	if a.OrganizationID != nil {
		receptionists, err := b.dir.ActiveReceptionists(ctx, *a.OrganizationID)
		if err != nil {
			b.log.Error().Err(err).Str("organization_id", a.OrganizationID.String()).Msg("receptionist lookup failed during fan-out")
		}
		for _, rec := range receptionists {
			out = append(out, recipient{id: rec.ID, role: directory.RoleReceptionist})
		}
	}

	return out
}

func (b *Broadcaster) dispatch(ctx context.Context, recipientID uuid.UUID, n Notification) {
	n.ID = uuid.New()
	n.RecipientID = recipientID
	n.CreatedAt = time.Now()

	if err := b.store.Create(ctx, &n); err != nil {
		b.log.Error().Err(err).
			Str("recipient_id", recipientID.String()).
			Str("kind", n.Kind).
			Msg("durable notification write failed")
	}

	if err := b.publisher.Publish(ctx, recipientID, n); err != nil {
		b.log.Error().Err(err).
			Str("recipient_id", recipientID.String()).
			Str("kind", n.Kind).
			Msg("real-time notification publish failed")
	}
}
