package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecal/scheduling/internal/audit"
	"github.com/pulsecal/scheduling/internal/directory"
)

// memRepo is an in-memory Repository. WithTx snapshots state on entry
// and restores it when fn fails, mirroring transactional rollback.
type memRepo struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*Appointment
	audits   []audit.Entry
	auditSeq int64

	failAudit bool
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *memRepo) snapshot() (map[uuid.UUID]*Appointment, []audit.Entry) {
	appts := make(map[uuid.UUID]*Appointment, len(m.appts))
	for id, a := range m.appts {
		cp := *a
		appts[id] = &cp
	}
	audits := append([]audit.Entry(nil), m.audits...)
	return appts, audits
}

func (m *memRepo) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	appts, audits := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.appts = appts
		m.audits = audits
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) FindConflicting(ctx context.Context, doctorID uuid.UUID, start time.Time, slot time.Duration, excludeID *uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID {
			continue
		}
		if a.Status == StatusCancelled || a.Status == StatusDeclined {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		diff := a.ScheduledAt.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff < slot {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) CreateAppointment(ctx context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdatePatientStatus(ctx context.Context, id uuid.UUID, from, to PatientStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.PatientStatus != from {
		return nil, ErrStatusChanged
	}
	a.PatientStatus = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || IsTerminal(a.Status) {
		return nil, ErrStatusChanged
	}
	a.ScheduledAt = scheduledAt
	a.ReminderSentAt = nil
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateNotes(ctx context.Context, id uuid.UUID, column string, value string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	switch column {
	case "notes":
		a.Notes = value
	case "reception_notes":
		a.ReceptionNotes = value
	case "patient_notes":
		a.PatientNotes = value
	default:
		return nil, fmt.Errorf("invalid notes column %q", column)
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appts {
		if a.Status != StatusConfirmed || a.ReminderSentAt != nil {
			continue
		}
		if a.ScheduledAt.After(now) && !a.ScheduledAt.After(now.Add(lead)) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.ReminderSentAt = &at
	return nil
}

func (m *memRepo) InsertAudit(ctx context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAudit {
		return errors.New("audit store unavailable")
	}
	m.auditSeq++
	e.ID = m.auditSeq
	e.Timestamp = time.Now()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memRepo) ListAuditForAppointment(ctx context.Context, id uuid.UUID) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []audit.Entry
	for _, e := range m.audits {
		if e.ObjectType == "appointment" && e.ObjectID != nil && *e.ObjectID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// memLocker serializes all critical sections with one mutex, standing in
// for the per-doctor Redis lock.
type memLocker struct {
	mu sync.Mutex
}

func (l *memLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type memDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*directory.User
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: make(map[uuid.UUID]*directory.User)}
}

func (d *memDirectory) add(role directory.Role, orgID *uuid.UUID, active bool) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New()
	d.users[id] = &directory.User{
		ID:             id,
		Name:           "user " + id.String()[:8],
		Role:           role,
		OrganizationID: orgID,
		Active:         active,
	}
	return id
}

func (d *memDirectory) UserByID(ctx context.Context, id uuid.UUID) (*directory.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *memDirectory) ActiveReceptionists(ctx context.Context, orgID uuid.UUID) ([]directory.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []directory.User
	for _, u := range d.users {
		if u.Role == directory.RoleReceptionist && u.Active && u.OrganizationID != nil && *u.OrganizationID == orgID {
			out = append(out, *u)
		}
	}
	return out, nil
}

// spyBroadcaster records every event the service emits.
type spyBroadcaster struct {
	mu        sync.Mutex
	events    []spyEvent
	reminders []uuid.UUID
}

type spyEvent struct {
	appointmentID uuid.UUID
	eventType     string
}

func (b *spyBroadcaster) AppointmentEvent(ctx context.Context, a *Appointment, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, spyEvent{appointmentID: a.ID, eventType: eventType})
}

func (b *spyBroadcaster) AppointmentReminder(ctx context.Context, a *Appointment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reminders = append(b.reminders, a.ID)
}

func (b *spyBroadcaster) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
