package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pulsecal/scheduling/internal/audit"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// repository code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

// WithTx runs fn against a transaction-bound repository. Calling WithTx
// on an already transaction-bound repository reuses the open transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{db: tx})
	})
}

const appointmentCols = `
	id, patient_id, doctor_id, organization_id, scheduled_at,
	status, patient_status, kind, fee::text,
	COALESCE(notes, ''), COALESCE(reception_notes, ''), COALESCE(patient_notes, ''),
	meeting_link, reminder_sent_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var fee string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.OrganizationID,
		&a.ScheduledAt,
		&a.Status,
		&a.PatientStatus,
		&a.Kind,
		&fee,
		&a.Notes,
		&a.ReceptionNotes,
		&a.PatientNotes,
		&a.MeetingLink,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Fee, err = decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("parse fee %q: %w", fee, err)
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindConflicting(ctx context.Context, doctorID uuid.UUID, start time.Time, slot time.Duration, excludeID *uuid.UUID) ([]Appointment, error) {
	// With a fixed slot length, two [start, start+slot) windows overlap
	// iff their starts are less than one slot apart.
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status NOT IN ('cancelled', 'declined')
		  AND scheduled_at > $2::timestamptz - $4::interval
		  AND scheduled_at < $2::timestamptz + $4::interval
		  AND ($3::uuid IS NULL OR id <> $3::uuid)
		ORDER BY scheduled_at
	`, doctorID, start, excludeID, slot)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, organization_id, scheduled_at,
			status, patient_status, kind, fee,
			notes, reception_notes, patient_notes, meeting_link,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, now(), now())
		RETURNING `+appointmentCols+`
	`, a.ID, a.PatientID, a.DoctorID, a.OrganizationID, a.ScheduledAt,
		a.Status, a.PatientStatus, a.Kind, a.Fee.String(),
		a.Notes, a.ReceptionNotes, a.PatientNotes, a.MeetingLink)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	*a = *created
	return nil
}

// UpdateStatus applies the status change with an optimistic guard: the
// row is only updated when it is still in the expected from status, so a
// concurrent transition loses cleanly instead of being overwritten.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentCols+`
	`, id, to, from)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (r *PgRepository) UpdatePatientStatus(ctx context.Context, id uuid.UUID, from, to PatientStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET patient_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND patient_status = $3
		RETURNING `+appointmentCols+`
	`, id, to, from)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_at = $2,
		    reminder_sent_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('completed', 'cancelled', 'declined')
		RETURNING `+appointmentCols+`
	`, id, scheduledAt)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

// notesColumns whitelists the role-scoped notes fields. UpdateNotes
// refuses anything else since the column name is interpolated.
var notesColumns = map[string]bool{
	"notes":           true,
	"reception_notes": true,
	"patient_notes":   true,
}

func (r *PgRepository) UpdateNotes(ctx context.Context, id uuid.UUID, column string, value string) (*Appointment, error) {
	if !notesColumns[column] {
		return nil, fmt.Errorf("invalid notes column %q", column)
	}

	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE appointments
		SET %s = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentCols, column), id, value)

	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND scheduled_at > $1::timestamptz
		  AND scheduled_at <= $1::timestamptz + $2::interval
	`, now, lead)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertAudit(ctx context.Context, e audit.Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, details, object_type, object_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, e.ActorID, e.Action, e.Details, e.ObjectType, e.ObjectID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PgRepository) ListAuditForAppointment(ctx context.Context, id uuid.UUID) ([]audit.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, details, object_type, object_id, created_at
		FROM audit_log
		WHERE object_type = 'appointment' AND object_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Details, &e.ObjectType, &e.ObjectID, &e.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
