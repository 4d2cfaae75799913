package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pulsecal/scheduling/internal/audit"
	"github.com/pulsecal/scheduling/internal/directory"
	redisclient "github.com/pulsecal/scheduling/internal/redis"
)

var (
	ErrPastDate              = errors.New("appointment cannot be scheduled in the past")
	ErrSlotConflict          = errors.New("time slot is not available for the selected doctor")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvalidPatientStatus  = errors.New("invalid patient status change")
	ErrMeetingLinkRequired   = errors.New("virtual appointments require a meeting link")
	ErrNegativeFee           = errors.New("fee cannot be negative")
	ErrNotAllowed            = errors.New("actor is not allowed to perform this action")
	ErrDoctorCalendarBusy    = errors.New("doctor calendar is being updated, please retry")
	ErrInvalidStatus         = errors.New("unknown appointment status")
	ErrNotADoctor            = errors.New("selected user is not an active doctor")
)

// SlotConflictError carries the conflicting appointment's time so the
// caller can offer alternatives. errors.Is(err, ErrSlotConflict) holds.
type SlotConflictError struct {
	ConflictingAt time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("time slot is not available for the selected doctor (overlapping appointment at %s)",
		e.ConflictingAt.Format(time.RFC3339))
}

func (e *SlotConflictError) Unwrap() error { return ErrSlotConflict }

// Broadcaster is notified after a transaction commits. Implementations
// are best-effort and must never return an error into the core.
type Broadcaster interface {
	AppointmentEvent(ctx context.Context, a *Appointment, eventType string)
	AppointmentReminder(ctx context.Context, a *Appointment)
}

// BookRequest is a validated-on-entry booking command. ScheduledAt must
// already be zone-aware; the service normalizes it to the canonical zone.
type BookRequest struct {
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	OrganizationID *uuid.UUID
	ScheduledAt    time.Time
	Kind           Kind
	Fee            decimal.Decimal
	Notes          string
	PatientNotes   string
	MeetingLink    *string
}

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	dir         directory.Directory
	broadcaster Broadcaster
	norm        *Normalizer
	slot        time.Duration
	log         zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, dir directory.Directory, broadcaster Broadcaster, norm *Normalizer, slot time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		locker:      locker,
		dir:         dir,
		broadcaster: broadcaster,
		norm:        norm,
		slot:        slot,
		log:         log,
		now:         time.Now,
	}
}

// Book reserves a slot for a patient with a doctor. The conflict check
// and the insert run inside one transaction under a per-doctor lock so
// two concurrent requests for the same slot cannot both commit.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) (*Appointment, error) {
	if err := s.validateBooking(actor, req); err != nil {
		return nil, err
	}

	scheduledAt := s.norm.Normalize(req.ScheduledAt)
	if scheduledAt.Before(s.now()) {
		return nil, ErrPastDate
	}

	doctor, err := s.dir.UserByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrNotADoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != directory.RoleDoctor || !doctor.Active {
		return nil, ErrNotADoctor
	}

	appt := &Appointment{
		ID:             uuid.New(),
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		OrganizationID: req.OrganizationID,
		ScheduledAt:    scheduledAt,
		Status:         StatusPending,
		PatientStatus:  PatientWaiting,
		Kind:           req.Kind,
		Fee:            req.Fee,
		Notes:          req.Notes,
		PatientNotes:   req.PatientNotes,
		MeetingLink:    req.MeetingLink,
	}

	err = s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(r Repository) error {
			conflicts, err := r.FindConflicting(lockCtx, req.DoctorID, scheduledAt, s.slot, nil)
			if err != nil {
				return fmt.Errorf("check conflicts: %w", err)
			}
			if len(conflicts) > 0 {
				return &SlotConflictError{ConflictingAt: conflicts[0].ScheduledAt}
			}

			if err := r.CreateAppointment(lockCtx, appt); err != nil {
				return err
			}

			return r.InsertAudit(lockCtx, audit.Entry{
				ActorID:    actorID(actor),
				Action:     audit.ActionAppointmentCreated,
				Details:    audit.SanitizeDetails(fmt.Sprintf("appointment booked for %s", scheduledAt.Format(time.RFC3339))),
				ObjectType: "appointment",
				ObjectID:   &appt.ID,
			})
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorCalendarBusy
		}
		return nil, err
	}

	s.broadcaster.AppointmentEvent(ctx, appt, "booked")

	return appt, nil
}

// Transition moves an appointment through the status state machine. Any
// change not in the transition table fails with ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, actor Actor, id uuid.UUID, to Status) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := s.authorizeTransition(actor, appt, to); err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, to) {
		s.log.Warn().
			Str("appointment_id", id.String()).
			Str("from", string(appt.Status)).
			Str("to", string(to)).
			Msg("rejected status transition")
		return nil, ErrInvalidTransition
	}

	from := appt.Status
	var updated *Appointment

	err = s.repo.WithTx(ctx, func(r Repository) error {
		updated, err = r.UpdateStatus(ctx, id, from, to)
		if err != nil {
			return err
		}

		return r.InsertAudit(ctx, audit.Entry{
			ActorID:    actorID(actor),
			Action:     auditActionFor(to),
			Details:    audit.SanitizeDetails(fmt.Sprintf("status %s -> %s", from, to)),
			ObjectType: "appointment",
			ObjectID:   &updated.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.AppointmentEvent(ctx, updated, eventTypeFor(to))

	return updated, nil
}

// AdvancePatientStatus moves in-clinic progress forward. It is
// independent of the overall status and never regresses.
func (s *Service) AdvancePatientStatus(ctx context.Context, actor Actor, id uuid.UUID, to PatientStatus) (*Appointment, error) {
	if !ValidPatientStatus(to) {
		return nil, ErrInvalidPatientStatus
	}
	if actor.Role == directory.RolePatient {
		return nil, ErrNotAllowed
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanAdvancePatientStatus(appt.PatientStatus, to) {
		return nil, ErrInvalidPatientStatus
	}

	from := appt.PatientStatus
	var updated *Appointment

	err = s.repo.WithTx(ctx, func(r Repository) error {
		updated, err = r.UpdatePatientStatus(ctx, id, from, to)
		if err != nil {
			return err
		}

		return r.InsertAudit(ctx, audit.Entry{
			ActorID:    actorID(actor),
			Action:     audit.ActionAppointmentUpdated,
			Details:    audit.SanitizeDetails(fmt.Sprintf("patient status %s -> %s", from, to)),
			ObjectType: "appointment",
			ObjectID:   &updated.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.AppointmentEvent(ctx, updated, "updated")

	return updated, nil
}

// Reschedule moves an appointment to a new slot, checking conflicts
// against all other appointments for the doctor.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id uuid.UUID, newTime time.Time) (*Appointment, error) {
	scheduledAt := s.norm.Normalize(newTime)
	if scheduledAt.Before(s.now()) {
		return nil, ErrPastDate
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role == directory.RolePatient && actor.ID != appt.PatientID {
		return nil, ErrNotAllowed
	}
	if IsTerminal(appt.Status) {
		return nil, ErrInvalidTransition
	}

	var updated *Appointment

	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(r Repository) error {
			conflicts, err := r.FindConflicting(lockCtx, appt.DoctorID, scheduledAt, s.slot, &id)
			if err != nil {
				return fmt.Errorf("check conflicts: %w", err)
			}
			if len(conflicts) > 0 {
				return &SlotConflictError{ConflictingAt: conflicts[0].ScheduledAt}
			}

			updated, err = r.UpdateSchedule(lockCtx, id, scheduledAt)
			if err != nil {
				return err
			}

			return r.InsertAudit(lockCtx, audit.Entry{
				ActorID:    actorID(actor),
				Action:     audit.ActionAppointmentUpdated,
				Details:    audit.SanitizeDetails(fmt.Sprintf("rescheduled %s -> %s", appt.ScheduledAt.Format(time.RFC3339), scheduledAt.Format(time.RFC3339))),
				ObjectType: "appointment",
				ObjectID:   &id,
			})
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorCalendarBusy
		}
		return nil, err
	}

	s.broadcaster.AppointmentEvent(ctx, updated, "rescheduled")

	return updated, nil
}

// UpdateNotes edits the notes field owned by the actor's role: doctors
// edit notes, receptionists reception_notes, patients patient_notes.
func (s *Service) UpdateNotes(ctx context.Context, actor Actor, id uuid.UUID, text string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var column string
	switch actor.Role {
	case directory.RoleDoctor, directory.RoleAdmin:
		column = "notes"
	case directory.RoleReceptionist:
		column = "reception_notes"
	case directory.RolePatient:
		if actor.ID != appt.PatientID {
			return nil, ErrNotAllowed
		}
		column = "patient_notes"
	default:
		return nil, ErrNotAllowed
	}

	var updated *Appointment

	err = s.repo.WithTx(ctx, func(r Repository) error {
		updated, err = r.UpdateNotes(ctx, id, column, text)
		if err != nil {
			return err
		}

		return r.InsertAudit(ctx, audit.Entry{
			ActorID:    actorID(actor),
			Action:     audit.ActionAppointmentUpdated,
			Details:    audit.SanitizeDetails(fmt.Sprintf("%s updated", column)),
			ObjectType: "appointment",
			ObjectID:   &id,
		})
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) AuditTrail(ctx context.Context, id uuid.UUID) ([]audit.Entry, error) {
	return s.repo.ListAuditForAppointment(ctx, id)
}

// SendDueReminders is called periodically by the reminder worker. It is
// best-effort: a failed dispatch is logged and retried on the next run
// because the appointment stays unmarked.
func (s *Service) SendDueReminders(ctx context.Context, lead time.Duration) error {
	now := s.now()
	due, err := s.repo.FindDueReminders(ctx, now, lead)
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		a := appt
		s.broadcaster.AppointmentReminder(ctx, &a)
		if err := s.repo.MarkReminded(ctx, a.ID, now); err != nil {
			s.log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to mark reminder sent")
		}
	}

	return nil
}

func (s *Service) validateBooking(actor Actor, req BookRequest) error {
	switch req.Kind {
	case KindNew, KindFollowUp, KindEmergency:
	case KindVirtual:
		if req.MeetingLink == nil || *req.MeetingLink == "" {
			return ErrMeetingLinkRequired
		}
	default:
		return fmt.Errorf("unknown appointment kind %q", req.Kind)
	}

	if req.Fee.IsNegative() {
		return ErrNegativeFee
	}

	// Patients may only book for themselves; staff book on behalf of
	// any patient.
	if actor.Role == directory.RolePatient && actor.ID != req.PatientID {
		return ErrNotAllowed
	}

	return nil
}

func (s *Service) authorizeTransition(actor Actor, appt *Appointment, to Status) error {
	if actor.Role != directory.RolePatient {
		return nil
	}
	// A patient may only cancel, and only their own appointment.
	if to != StatusCancelled || actor.ID != appt.PatientID {
		return ErrNotAllowed
	}
	return nil
}

func actorID(actor Actor) *uuid.UUID {
	if actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
