package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanWindow(row pgx.Row) (*WeeklyWindow, error) {
	var w WeeklyWindow
	var start, end int
	err := row.Scan(&w.ID, &w.PractitionerID, &w.DayOfWeek, &start, &end, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}
	w.Start = calendar.TimeOfDay(start)
	w.End = calendar.TimeOfDay(end)
	return &w, nil
}

func scanUnavailability(row pgx.Row) (*Unavailability, error) {
	var u Unavailability
	var startDate, endDate time.Time
	err := row.Scan(&u.ID, &u.PractitionerID, &startDate, &endDate, &u.Reason, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnavailabilityNotFound
		}
		return nil, err
	}
	u.StartDate = dateFromPg(startDate)
	u.EndDate = dateFromPg(endDate)
	return &u, nil
}

// dateFromPg reads a DATE column, which pgx returns as UTC midnight.
func dateFromPg(t time.Time) calendar.Date {
	y, m, d := t.Date()
	return calendar.Date{Year: y, Month: m, Day: d}
}

func dateToPg(d calendar.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func collectWindows(rows pgx.Rows) ([]WeeklyWindow, error) {
	defer rows.Close()
	var out []WeeklyWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Store

func (s *PgStore) WeeklyWindows(ctx context.Context, practitionerID uuid.UUID, dayOfWeek int) ([]WeeklyWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, practitioner_id, day_of_week, start_minute, end_minute, created_at
		FROM weekly_windows
		WHERE practitioner_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, practitionerID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("query weekly windows: %w", err)
	}
	return collectWindows(rows)
}

func (s *PgStore) IsUnavailable(ctx context.Context, practitionerID uuid.UUID, date calendar.Date) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM unavailabilities
			WHERE practitioner_id = $1
			  AND start_date <= $2
			  AND end_date >= $2
		)
	`, practitionerID, dateToPg(date)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query unavailability: %w", err)
	}
	return exists, nil
}

func (s *PgStore) IsActive(ctx context.Context, practitionerID uuid.UUID) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `SELECT active FROM practitioners WHERE id = $1`, practitionerID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrPractitionerNotFound
		}
		return false, fmt.Errorf("query practitioner active flag: %w", err)
	}
	return active, nil
}

// Repository

func (s *PgStore) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, active, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (s *PgStore) SetPractitionerActive(ctx context.Context, id uuid.UUID, active bool) (*Practitioner, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE practitioners
		SET active = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, specialty, active, created_at, updated_at
	`, id, active)
	return scanPractitioner(row)
}

func (s *PgStore) ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, practitioner_id, day_of_week, start_minute, end_minute, created_at
		FROM weekly_windows
		WHERE practitioner_id = $1
		ORDER BY day_of_week, start_minute
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("query weekly windows: %w", err)
	}
	return collectWindows(rows)
}

func (s *PgStore) CreateWindow(ctx context.Context, w WeeklyWindow) (*WeeklyWindow, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO weekly_windows (id, practitioner_id, day_of_week, start_minute, end_minute, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, practitioner_id, day_of_week, start_minute, end_minute, created_at
	`, uuid.New(), w.PractitionerID, w.DayOfWeek, int(w.Start), int(w.End))

	created, err := scanWindow(row)
	if err != nil {
		switch code, _ := db.Violation(err); code {
		case db.CodeExclusionViolation:
			return nil, ErrWindowOverlap
		case db.CodeForeignKeyViolation:
			return nil, ErrPractitionerNotFound
		case db.CodeCheckViolation:
			return nil, ErrInvalidWindow
		}
		return nil, fmt.Errorf("insert weekly window: %w", err)
	}
	return created, nil
}

func (s *PgStore) DeleteWindow(ctx context.Context, practitionerID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM weekly_windows WHERE id = $1 AND practitioner_id = $2
	`, id, practitionerID)
	if err != nil {
		return fmt.Errorf("delete weekly window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (s *PgStore) ListUnavailabilities(ctx context.Context, practitionerID uuid.UUID) ([]Unavailability, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, practitioner_id, start_date, end_date, reason, created_at
		FROM unavailabilities
		WHERE practitioner_id = $1
		ORDER BY start_date DESC
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("query unavailabilities: %w", err)
	}
	defer rows.Close()

	var out []Unavailability
	for rows.Next() {
		u, err := scanUnavailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgStore) CreateUnavailability(ctx context.Context, u Unavailability) (*Unavailability, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO unavailabilities (id, practitioner_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, practitioner_id, start_date, end_date, reason, created_at
	`, uuid.New(), u.PractitionerID, dateToPg(u.StartDate), dateToPg(u.EndDate), u.Reason)

	created, err := scanUnavailability(row)
	if err != nil {
		switch code, _ := db.Violation(err); code {
		case db.CodeForeignKeyViolation:
			return nil, ErrPractitionerNotFound
		case db.CodeCheckViolation:
			return nil, ErrInvalidDateRange
		}
		return nil, fmt.Errorf("insert unavailability: %w", err)
	}
	return created, nil
}

func (s *PgStore) DeleteUnavailability(ctx context.Context, practitionerID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM unavailabilities WHERE id = $1 AND practitioner_id = $2
	`, id, practitionerID)
	if err != nil {
		return fmt.Errorf("delete unavailability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnavailabilityNotFound
	}
	return nil
}
