package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

// ActiveSlotConstraint is the partial unique index that allows a single
// pending or confirmed appointment per practitioner and start time.
const ActiveSlotConstraint = "appointments_active_slot_key"

const appointmentColumns = `id, patient_id, practitioner_id, date_time, reason, status, notes, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.DateTime,
		&a.Reason,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanCancellation(row pgx.Row) (*CancellationRequest, error) {
	var c CancellationRequest
	var resolvedAt *time.Time

	err := row.Scan(
		&c.ID,
		&c.AppointmentID,
		&c.RequestedAt,
		&c.Reason,
		&c.Status,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}

	c.ResolvedAt = resolvedAt
	return &c, nil
}

func scanReminder(row pgx.Row) (*reminder.Reminder, error) {
	var r reminder.Reminder
	var sentAt *time.Time

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.Kind,
		&r.ScheduledAt,
		&r.Sent,
		&sentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reminder.ErrReminderNotFound
		}
		return nil, err
	}

	r.SentAt = sentAt
	return &r, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func statusStrings(ss []AppointmentStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ActiveStartTimes(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_time
		FROM appointments
		WHERE practitioner_id = $1
		  AND date_time >= $2
		  AND date_time < $3
		  AND status IN ('pending', 'confirmed')
		ORDER BY date_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query active appointments: %w", err)
	}

	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan active appointments: %w", err)
	}
	return times, nil
}

func (r *PgRepository) ExistsActive(ctx context.Context, practitionerID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $1
			  AND date_time = $2
			  AND status IN ('pending', 'confirmed')
		)
	`, practitionerID, at).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PractitionerID != uuid.Nil {
		add("practitioner_id = $%d", f.PractitionerID)
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if !f.From.IsZero() {
		add("date_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("date_time < $%d", f.To)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) CountByStatus(ctx context.Context, from, to time.Time) (map[AppointmentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE date_time >= $1 AND date_time < $2
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	defer rows.Close()

	counts := make(map[AppointmentStatus]int)
	for rows.Next() {
		var status AppointmentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgRepository) CountByPractitioner(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practitioner_id, count(*)
		FROM appointments
		WHERE date_time >= $1 AND date_time < $2
		GROUP BY practitioner_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments per practitioner: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, appt Appointment, reminders []reminder.Reminder) (*Appointment, error) {
	var created *Appointment

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, practitioner_id, date_time, reason, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6, now(), now())
			RETURNING `+appointmentColumns+`
		`, appt.ID, appt.PatientID, appt.PractitionerID, appt.DateTime, appt.Reason, appt.Notes)

		a, err := scanAppointment(row)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, rem := range reminders {
			batch.Queue(`
				INSERT INTO reminders (id, appointment_id, kind, scheduled_at, sent)
				VALUES ($1, $2, $3, $4, false)
			`, rem.ID, a.ID, rem.Kind, rem.ScheduledAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}

		created = a
		return nil
	})
	if err != nil {
		return nil, bookingError(err)
	}

	return created, nil
}

// bookingError maps constraint violations raised by the booking transaction
// to domain errors.
func bookingError(err error) error {
	switch code, constraint := db.Violation(err); {
	case code == db.CodeUniqueViolation && constraint == ActiveSlotConstraint:
		return ErrSlotTaken
	case code == db.CodeForeignKeyViolation && strings.Contains(constraint, "patient"):
		return ErrPatientNotFound
	}
	return fmt.Errorf("create booking: %w", err)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) CreateCancellationRequest(ctx context.Context, req CancellationRequest) (*CancellationRequest, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cancellation_requests (id, appointment_id, requested_at, reason, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, appointment_id, requested_at, reason, status, resolved_at
	`, req.ID, req.AppointmentID, req.RequestedAt, req.Reason)

	created, err := scanCancellation(row)
	if err != nil {
		if db.IsViolation(err, db.CodeForeignKeyViolation, "") {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("insert cancellation request: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetCancellationRequest(ctx context.Context, id uuid.UUID) (*CancellationRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, requested_at, reason, status, resolved_at
		FROM cancellation_requests
		WHERE id = $1
	`, id)
	return scanCancellation(row)
}

func (r *PgRepository) ListCancellationRequests(ctx context.Context, status CancellationStatus) ([]CancellationRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, requested_at, reason, status, resolved_at
		FROM cancellation_requests
		WHERE $1::text = '' OR status = $1::text
		ORDER BY requested_at DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list cancellation requests: %w", err)
	}
	return collect(rows, scanCancellation)
}

func (r *PgRepository) ResolveCancellation(ctx context.Context, id uuid.UUID, accept bool, at time.Time) (*CancellationRequest, error) {
	to := CancellationRejected
	if accept {
		to = CancellationAccepted
	}

	var resolved *CancellationRequest

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE cancellation_requests
			SET status = $2,
			    resolved_at = $3
			WHERE id = $1
			  AND status = 'pending'
			RETURNING id, appointment_id, requested_at, reason, status, resolved_at
		`, id, to, at)

		req, err := scanCancellation(row)
		if errors.Is(err, ErrCancellationNotFound) {
			// Distinguish a missing request from one already settled.
			if _, getErr := scanCancellation(tx.QueryRow(ctx, `
				SELECT id, appointment_id, requested_at, reason, status, resolved_at
				FROM cancellation_requests WHERE id = $1
			`, id)); getErr == nil {
				return ErrCancellationResolved
			}
			return ErrCancellationNotFound
		}
		if err != nil {
			return err
		}

		if accept {
			tag, err := tx.Exec(ctx, `
				UPDATE appointments
				SET status = 'cancelled',
				    updated_at = now()
				WHERE id = $1
				  AND status IN ('pending', 'confirmed')
			`, req.AppointmentID)
			if err != nil {
				return fmt.Errorf("cancel appointment: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrInvalidStatusTransition
			}
		}

		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}

func (r *PgRepository) ListReminders(ctx context.Context, sent *bool) ([]reminder.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, kind, scheduled_at, sent, sent_at
		FROM reminders
		WHERE $1::boolean IS NULL OR sent = $1
		ORDER BY scheduled_at
	`, sent)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return collect(rows, scanReminder)
}

func (r *PgRepository) RemindersFor(ctx context.Context, appointmentID uuid.UUID) ([]reminder.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, kind, scheduled_at, sent, sent_at
		FROM reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_at
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list reminders for appointment: %w", err)
	}
	return collect(rows, scanReminder)
}

// reminder.Repository

func (r *PgRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]reminder.Due, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.id, rm.appointment_id, rm.kind, rm.scheduled_at, rm.sent, rm.sent_at,
		       a.patient_id, a.practitioner_id, a.date_time
		FROM reminders rm
		JOIN appointments a ON a.id = rm.appointment_id
		WHERE rm.sent = false
		  AND rm.scheduled_at <= $1
		  AND a.date_time > $1
		  AND a.status IN ('pending', 'confirmed')
		ORDER BY rm.scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var result []reminder.Due
	for rows.Next() {
		var d reminder.Due
		if err := rows.Scan(
			&d.ID, &d.AppointmentID, &d.Kind, &d.ScheduledAt, &d.Sent, &d.SentAt,
			&d.PatientID, &d.PractitionerID, &d.AppointmentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET sent = true,
		    sent_at = $2
		WHERE id = $1
		  AND sent = false
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reminder.ErrReminderNotFound
	}
	return nil
}
