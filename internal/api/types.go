package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Requests

type CreateAppointmentRequest struct {
	PractitionerID string    `json:"practitioner_id" validate:"required,uuid"`
	PatientID      string    `json:"patient_id" validate:"required,uuid"`
	DateTime       time.Time `json:"date_time" validate:"required"`
	Reason         string    `json:"reason" validate:"max=500"`
}

type CancellationRequestBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

type CreateWindowRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=7"`
	Start     string `json:"start" validate:"required,timeofday"`
	End       string `json:"end" validate:"required,timeofday"`
}

type CreateUnavailabilityRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"max=500"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// Responses

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	DateTime       time.Time `json:"date_time"`
	Reason         string    `json:"reason,omitempty"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		DateTime:       a.DateTime,
		Reason:         a.Reason,
		Status:         string(a.Status),
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAppointmentResponses(as []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for i := range as {
		out = append(out, toAppointmentResponse(&as[i]))
	}
	return out
}

type BookingResponse struct {
	AppointmentResponse
	Reminders []reminder.Reminder `json:"reminders"`
}

type CancellationResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	RequestedAt   time.Time  `json:"requested_at"`
	Reason        string     `json:"reason,omitempty"`
	Status        string     `json:"status"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toCancellationResponse(c *appointment.CancellationRequest) CancellationResponse {
	return CancellationResponse{
		ID:            c.ID,
		AppointmentID: c.AppointmentID,
		RequestedAt:   c.RequestedAt,
		Reason:        c.Reason,
		Status:        string(c.Status),
		ResolvedAt:    c.ResolvedAt,
	}
}

type PractitionerResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialty      *string   `json:"specialty,omitempty"`
	Active         bool      `json:"active"`
	AvailableToday bool      `json:"available_today"`
}

type WindowResponse struct {
	ID        uuid.UUID          `json:"id"`
	DayOfWeek int                `json:"day_of_week"`
	Start     calendar.TimeOfDay `json:"start"`
	End       calendar.TimeOfDay `json:"end"`
}

func toWindowResponses(ws []availability.WeeklyWindow) []WindowResponse {
	out := make([]WindowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, WindowResponse{ID: w.ID, DayOfWeek: w.DayOfWeek, Start: w.Start, End: w.End})
	}
	return out
}

type UnavailabilityResponse struct {
	ID        uuid.UUID     `json:"id"`
	StartDate calendar.Date `json:"start_date"`
	EndDate   calendar.Date `json:"end_date"`
	Reason    string        `json:"reason,omitempty"`
}

func toUnavailabilityResponses(us []availability.Unavailability) []UnavailabilityResponse {
	out := make([]UnavailabilityResponse, 0, len(us))
	for _, u := range us {
		out = append(out, UnavailabilityResponse{ID: u.ID, StartDate: u.StartDate, EndDate: u.EndDate, Reason: u.Reason})
	}
	return out
}

type SlotsResponse struct {
	PractitionerID uuid.UUID     `json:"practitioner_id"`
	Date           calendar.Date `json:"date"`
	Slots          []time.Time   `json:"slots"`
}

type PlanningResponse struct {
	PractitionerID uuid.UUID             `json:"practitioner_id"`
	WeekStart      calendar.Date         `json:"week_start"`
	Appointments   []AppointmentResponse `json:"appointments"`
}
