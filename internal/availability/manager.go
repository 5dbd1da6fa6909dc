package availability

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

const (
	EventWindowCreated          = "WINDOW_CREATED"
	EventWindowDeleted          = "WINDOW_DELETED"
	EventUnavailabilityCreated  = "UNAVAILABILITY_CREATED"
	EventUnavailabilityDeleted  = "UNAVAILABILITY_DELETED"
	EventPractitionerActiveFlag = "PRACTITIONER_ACTIVE_CHANGED"
)

// Manager applies administrative changes to a practitioner's availability
// after checking the write-time rules.
type Manager struct {
	repo  Repository
	audit *audit.Recorder
}

func NewManager(repo Repository, rec *audit.Recorder) *Manager {
	return &Manager{repo: repo, audit: rec}
}

func (m *Manager) Practitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return m.repo.GetPractitioner(ctx, id)
}

func (m *Manager) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Practitioner, error) {
	p, err := m.repo.SetPractitionerActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	m.audit.Emit(ctx, audit.Entry{
		EventType:   EventPractitionerActiveFlag,
		Description: fmt.Sprintf("practitioner %s active=%t", id, active),
		Payload:     map[string]any{"practitioner_id": id.String(), "active": active},
	})
	return p, nil
}

func (m *Manager) Windows(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyWindow, error) {
	if _, err := m.repo.GetPractitioner(ctx, practitionerID); err != nil {
		return nil, err
	}
	return m.repo.ListWindows(ctx, practitionerID)
}

// AddWindow rejects windows that are empty, out of range or that overlap an
// existing window of the same practitioner and weekday.
func (m *Manager) AddWindow(ctx context.Context, w WeeklyWindow) (*WeeklyWindow, error) {
	if w.DayOfWeek < 1 || w.DayOfWeek > 7 {
		return nil, fmt.Errorf("%w: day_of_week must be between 1 and 7", ErrInvalidWindow)
	}
	if !w.Start.Valid() || !w.End.ValidEnd() {
		return nil, fmt.Errorf("%w: times must be within the day", ErrInvalidWindow)
	}
	if w.Start >= w.End {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}

	existing, err := m.repo.WeeklyWindows(ctx, w.PractitionerID, w.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}
	for _, e := range existing {
		if e.Overlaps(w) {
			return nil, fmt.Errorf("%w: %s-%s", ErrWindowOverlap, e.Start, e.End)
		}
	}

	created, err := m.repo.CreateWindow(ctx, w)
	if err != nil {
		return nil, err
	}

	m.audit.Emit(ctx, audit.Entry{
		EventType:   EventWindowCreated,
		Description: fmt.Sprintf("weekly window created: day %d %s-%s", created.DayOfWeek, created.Start, created.End),
		Payload: map[string]any{
			"practitioner_id": created.PractitionerID.String(),
			"window_id":       created.ID.String(),
		},
	})
	return created, nil
}

func (m *Manager) RemoveWindow(ctx context.Context, practitionerID, id uuid.UUID) error {
	if err := m.repo.DeleteWindow(ctx, practitionerID, id); err != nil {
		return err
	}
	m.audit.Emit(ctx, audit.Entry{
		EventType:   EventWindowDeleted,
		Description: "weekly window deleted",
		Payload:     map[string]any{"practitioner_id": practitionerID.String(), "window_id": id.String()},
	})
	return nil
}

func (m *Manager) Unavailabilities(ctx context.Context, practitionerID uuid.UUID) ([]Unavailability, error) {
	if _, err := m.repo.GetPractitioner(ctx, practitionerID); err != nil {
		return nil, err
	}
	return m.repo.ListUnavailabilities(ctx, practitionerID)
}

func (m *Manager) AddUnavailability(ctx context.Context, u Unavailability) (*Unavailability, error) {
	if u.StartDate.IsZero() || u.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: both dates are required", ErrInvalidDateRange)
	}
	if u.StartDate.After(u.EndDate) {
		return nil, ErrInvalidDateRange
	}
	u.Reason = strings.TrimSpace(u.Reason)

	created, err := m.repo.CreateUnavailability(ctx, u)
	if err != nil {
		return nil, err
	}

	m.audit.Emit(ctx, audit.Entry{
		EventType:   EventUnavailabilityCreated,
		Description: fmt.Sprintf("unavailability created: %s to %s (%s)", created.StartDate, created.EndDate, created.Reason),
		Payload: map[string]any{
			"practitioner_id":   created.PractitionerID.String(),
			"unavailability_id": created.ID.String(),
		},
	})
	return created, nil
}

func (m *Manager) RemoveUnavailability(ctx context.Context, practitionerID, id uuid.UUID) error {
	if err := m.repo.DeleteUnavailability(ctx, practitionerID, id); err != nil {
		return err
	}
	m.audit.Emit(ctx, audit.Entry{
		EventType:   EventUnavailabilityDeleted,
		Description: "unavailability deleted",
		Payload:     map[string]any{"practitioner_id": practitionerID.String(), "unavailability_id": id.String()},
	})
	return nil
}

// AvailableOn reports whether the practitioner is active and not on leave on d.
func (m *Manager) AvailableOn(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) (bool, error) {
	active, err := m.repo.IsActive(ctx, practitionerID)
	if err != nil || !active {
		return false, err
	}
	off, err := m.repo.IsUnavailable(ctx, practitionerID, d)
	if err != nil {
		return false, err
	}
	return !off, nil
}
