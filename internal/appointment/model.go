package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Active reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ActiveStatuses are the statuses that hold a slot.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

type CancellationStatus string

const (
	CancellationPending  CancellationStatus = "pending"
	CancellationAccepted CancellationStatus = "accepted"
	CancellationRejected CancellationStatus = "rejected"
)

func (s CancellationStatus) Valid() bool {
	return s == CancellationPending || s == CancellationAccepted || s == CancellationRejected
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	DateTime       time.Time
	Reason         string
	Status         AppointmentStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CancellationRequest struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	RequestedAt   time.Time
	Reason        string
	Status        CancellationStatus
	ResolvedAt    *time.Time
}

// BookingRequest is the input of Service.Book.
type BookingRequest struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	DateTime       time.Time
	Reason         string
}

// Filter narrows appointment listings. Zero fields are ignored; the time
// range is half-open [From, To).
type Filter struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	From           time.Time
	To             time.Time
	Statuses       []AppointmentStatus
}

// Stats summarises appointments over a period.
type Stats struct {
	From             time.Time                 `json:"from"`
	To               time.Time                 `json:"to"`
	Total            int                       `json:"total"`
	ByStatus         map[AppointmentStatus]int `json:"by_status"`
	CancellationRate float64                   `json:"cancellation_rate"`
	ByPractitioner   []PractitionerCount       `json:"by_practitioner"`
	BySpecialty      []SpecialtyCount          `json:"by_specialty"`
}

type PractitionerCount struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Name           string    `json:"name"`
	Specialty      *string   `json:"specialty,omitempty"`
	Count          int       `json:"count"`
}

type SpecialtyCount struct {
	Specialty string `json:"specialty"`
	Count     int    `json:"count"`
}
