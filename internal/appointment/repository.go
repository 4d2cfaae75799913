package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecal/scheduling/internal/audit"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStatusChanged       = errors.New("appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the service.
//
// WithTx runs fn against a transaction-bound copy of the repository: the
// conflict check, the appointment write and the audit entry for one
// operation all commit or roll back together.
type Repository interface {
	WithTx(ctx context.Context, fn func(r Repository) error) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindConflicting returns the non-terminal appointments for the doctor
	// whose [scheduled_at, scheduled_at+slot) window overlaps a candidate
	// slot starting at start. excludeID skips one appointment so a
	// reschedule does not conflict with itself.
	FindConflicting(ctx context.Context, doctorID uuid.UUID, start time.Time, slot time.Duration, excludeID *uuid.UUID) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	UpdatePatientStatus(ctx context.Context, id uuid.UUID, from, to PatientStatus) (*Appointment, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, column string, value string) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Audit trail
	InsertAudit(ctx context.Context, e audit.Entry) error
	ListAuditForAppointment(ctx context.Context, id uuid.UUID) ([]audit.Entry, error)
}
