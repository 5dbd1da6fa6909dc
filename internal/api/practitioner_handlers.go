package api

import (
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ical"
)

func (h *handlers) getPractitioner(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.availability.Practitioner(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	today, err := h.availability.AvailableOn(r.Context(), id, calendar.DateOf(h.clock.Now()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PractitionerResponse{
		ID:             p.ID,
		Name:           p.Name,
		Specialty:      p.Specialty,
		Active:         p.Active,
		AvailableToday: today,
	})
}

func (h *handlers) setPractitionerActive(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.availability.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PractitionerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Specialty: p.Specialty,
		Active:    p.Active,
	})
}

// Weekly windows

func (h *handlers) listWindows(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	ws, err := h.availability.Windows(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowResponses(ws))
}

func (h *handlers) createWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	var req CreateWindowRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	// Both already passed the timeofday tag.
	start, _ := calendar.ParseTimeOfDay(req.Start)
	end, _ := calendar.ParseTimeOfDay(req.End)

	created, err := h.availability.AddWindow(r.Context(), availability.WeeklyWindow{
		PractitionerID: id,
		DayOfWeek:      req.DayOfWeek,
		Start:          start,
		End:            end,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowResponses([]availability.WeeklyWindow{*created})[0])
}

func (h *handlers) deleteWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	windowID, ok := uuidParam(w, r, "windowID")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	if err := h.availability.RemoveWindow(r.Context(), id, windowID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unavailabilities

func (h *handlers) listUnavailabilities(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	us, err := h.availability.Unavailabilities(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnavailabilityResponses(us))
}

func (h *handlers) createUnavailability(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	var req CreateUnavailabilityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	start, _ := calendar.ParseDate(req.StartDate)
	end, _ := calendar.ParseDate(req.EndDate)

	created, err := h.availability.AddUnavailability(r.Context(), availability.Unavailability{
		PractitionerID: id,
		StartDate:      start,
		EndDate:        end,
		Reason:         req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnavailabilityResponses([]availability.Unavailability{*created})[0])
}

func (h *handlers) deleteUnavailability(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	uid, ok := uuidParam(w, r, "unavailabilityID")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	if err := h.availability.RemoveUnavailability(r.Context(), id, uid); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Slots and planning

func (h *handlers) daySlots(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}
	ss, err := h.slots.ForDate(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{PractitionerID: id, Date: date, Slots: ss})
}

func (h *handlers) weekSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}
	days, err := h.slots.ForWeek(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *handlers) planning(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}
	monday, appts, err := h.appointments.WeeklyPlanning(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanningResponse{
		PractitionerID: id,
		WeekStart:      monday,
		Appointments:   toAppointmentResponses(appts),
	})
}

// planningICS serves the same week as planning as an iCalendar feed.
func (h *handlers) planningICS(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if !caller(r).ActsFor(id) {
		forbidden(w)
		return
	}
	date, ok := h.dateQuery(w, r)
	if !ok {
		return
	}
	_, appts, err := h.appointments.WeeklyPlanning(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := ical.WritePlanning(w, id, appts, h.clock.Now()); err != nil {
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("write planning calendar")
	}
}
