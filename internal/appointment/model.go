package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pulsecal/scheduling/internal/directory"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDeclined  Status = "declined"
)

// PatientStatus tracks in-clinic progress independently of the overall
// appointment status.
type PatientStatus string

const (
	PatientWaiting        PatientStatus = "waiting"
	PatientInConsultation PatientStatus = "in_consultation"
	PatientDone           PatientStatus = "done"
)

type Kind string

const (
	KindNew       Kind = "new"
	KindFollowUp  Kind = "follow_up"
	KindEmergency Kind = "emergency"
	KindVirtual   Kind = "virtual"
)

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	OrganizationID *uuid.UUID // nil for solo practice
	ScheduledAt    time.Time  // always in the canonical zone
	Status         Status
	PatientStatus  PatientStatus
	Kind           Kind
	Fee            decimal.Decimal
	Notes          string
	ReceptionNotes string
	PatientNotes   string
	MeetingLink    *string
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsVirtual is derived from the appointment kind.
func (a *Appointment) IsVirtual() bool {
	return a.Kind == KindVirtual
}

// Actor identifies who is performing a scheduling action. It is passed
// explicitly into every core operation; the core never reaches into
// ambient session state.
type Actor struct {
	ID             uuid.UUID
	Role           directory.Role
	OrganizationID *uuid.UUID
}
