package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrPractitionerNotFound   = errors.New("practitioner not found")
	ErrWindowNotFound         = errors.New("weekly window not found")
	ErrUnavailabilityNotFound = errors.New("unavailability not found")
	ErrInvalidWindow          = errors.New("weekly window is invalid")
	ErrWindowOverlap          = errors.New("weekly window overlaps an existing window")
	ErrInvalidDateRange       = errors.New("unavailability start date is after end date")
)

// Store is the read side consumed by the slot engine and the booking validator.
type Store interface {
	// WeeklyWindows returns the windows for one ISO weekday ordered by start.
	WeeklyWindows(ctx context.Context, practitionerID uuid.UUID, dayOfWeek int) ([]WeeklyWindow, error)
	IsUnavailable(ctx context.Context, practitionerID uuid.UUID, date calendar.Date) (bool, error)
	IsActive(ctx context.Context, practitionerID uuid.UUID) (bool, error)
}

// Repository adds the administrative write side.
type Repository interface {
	Store

	GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	SetPractitionerActive(ctx context.Context, id uuid.UUID, active bool) (*Practitioner, error)

	ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyWindow, error)
	CreateWindow(ctx context.Context, w WeeklyWindow) (*WeeklyWindow, error)
	DeleteWindow(ctx context.Context, practitionerID, id uuid.UUID) error

	ListUnavailabilities(ctx context.Context, practitionerID uuid.UUID) ([]Unavailability, error)
	CreateUnavailability(ctx context.Context, u Unavailability) (*Unavailability, error)
	DeleteUnavailability(ctx context.Context, practitionerID, id uuid.UUID) error
}
