package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Domain errors and how they surface over HTTP. Anything not listed is a 500.
var errorMappings = []errorMapping{
	{appointment.ErrPastDateTime, http.StatusUnprocessableEntity, "past_date_time"},
	{appointment.ErrPractitionerInactive, http.StatusUnprocessableEntity, "practitioner_inactive"},
	{appointment.ErrPractitionerUnavailable, http.StatusUnprocessableEntity, "practitioner_unavailable"},
	{appointment.ErrOutsideWorkingHours, http.StatusUnprocessableEntity, "outside_working_hours"},
	{appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
	{appointment.ErrSlotBusy, http.StatusConflict, "slot_busy"},
	{appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{appointment.ErrCancellationResolved, http.StatusConflict, "cancellation_already_resolved"},
	{appointment.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{appointment.ErrCancellationNotFound, http.StatusNotFound, "cancellation_request_not_found"},
	{availability.ErrPractitionerNotFound, http.StatusNotFound, "practitioner_not_found"},
	{availability.ErrWindowNotFound, http.StatusNotFound, "window_not_found"},
	{availability.ErrUnavailabilityNotFound, http.StatusNotFound, "unavailability_not_found"},
	{availability.ErrWindowOverlap, http.StatusConflict, "window_overlap"},
	{availability.ErrInvalidWindow, http.StatusBadRequest, "invalid_window"},
	{availability.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
}

// writeServiceError maps a service error to a response. Unexpected errors are
// logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}
