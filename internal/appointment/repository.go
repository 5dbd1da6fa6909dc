package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrCancellationNotFound = errors.New("cancellation request not found")
)

// Ledger is the read contract the slot engine needs.
type Ledger interface {
	// ActiveStartTimes returns the start times of pending or confirmed
	// appointments of the practitioner in [from, to).
	ActiveStartTimes(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Ledger
	reminder.Repository

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// For conflict checks
	ExistsActive(ctx context.Context, practitionerID uuid.UUID, at time.Time) (bool, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	CountByStatus(ctx context.Context, from, to time.Time) (map[AppointmentStatus]int, error)
	// CountByPractitioner counts appointments of any status in [from, to)
	// per practitioner. Practitioners without appointments are absent.
	CountByPractitioner(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error)

	// CreateBooking stores a pending appointment and its reminders
	// atomically. A second active appointment on the same slot fails with
	// ErrSlotTaken.
	CreateBooking(ctx context.Context, appt Appointment, reminders []reminder.Reminder) (*Appointment, error)
	// UpdateAppointmentStatus moves an appointment to `to` only if its
	// current status is one of `from`. Otherwise ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)

	CreateCancellationRequest(ctx context.Context, req CancellationRequest) (*CancellationRequest, error)
	GetCancellationRequest(ctx context.Context, id uuid.UUID) (*CancellationRequest, error)
	ListCancellationRequests(ctx context.Context, status CancellationStatus) ([]CancellationRequest, error)
	// ResolveCancellation settles a pending request. When accepted, the
	// appointment is cancelled in the same transaction. A request that is
	// no longer pending fails with ErrCancellationResolved.
	ResolveCancellation(ctx context.Context, id uuid.UUID, accept bool, at time.Time) (*CancellationRequest, error)

	ListReminders(ctx context.Context, sent *bool) ([]reminder.Reminder, error)
	RemindersFor(ctx context.Context, appointmentID uuid.UUID) ([]reminder.Reminder, error)
}
