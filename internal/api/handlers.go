package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/principal"
	"github.com/hackgods/clinic-scheduling/internal/slots"
)

type handlers struct {
	appointments *appointment.Service
	availability *availability.Manager
	slots        *slots.Engine
	auditLog     audit.Reader
	clock        calendar.Clock
	logger       zerolog.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger, err)
}

func caller(r *http.Request) principal.Principal {
	p, _ := principal.FromContext(r.Context())
	return p
}

// dateQuery reads ?date=YYYY-MM-DD, defaulting to today.
func (h *handlers) dateQuery(w http.ResponseWriter, r *http.Request) (calendar.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return calendar.DateOf(h.clock.Now()), true
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
		return calendar.Date{}, false
	}
	return d, true
}

// Appointments

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patientID := uuid.MustParse(req.PatientID)
	if !caller(r).CanBookFor(patientID) {
		forbidden(w)
		return
	}

	appt, err := h.appointments.Book(r.Context(), appointment.BookingRequest{
		PractitionerID: uuid.MustParse(req.PractitionerID),
		PatientID:      patientID,
		DateTime:       req.DateTime,
		Reason:         req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rs, err := h.appointments.RemindersFor(r.Context(), appt.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookingResponse{
		AppointmentResponse: toAppointmentResponse(appt),
		Reminders:           rs,
	})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f appointment.Filter

	for key, dst := range map[string]*uuid.UUID{"practitioner_id": &f.PractitionerID, "patient_id": &f.PatientID} {
		if v := q.Get(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be a valid UUID")
				return
			}
			*dst = id
		}
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be an RFC 3339 timestamp")
				return
			}
			*dst = t
		}
	}
	if v := q.Get("status"); v != "" {
		s := appointment.AppointmentStatus(v)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
			return
		}
		f.Statuses = []appointment.AppointmentStatus{s}
	}

	// Non-admin callers only ever see their own appointments.
	switch p := caller(r); p.Kind {
	case principal.KindPractitioner:
		f.PractitionerID = p.ID
	case principal.KindPatient:
		f.PatientID = p.ID
	}

	appts, err := h.appointments.ListAppointments(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

// loadVisible fetches an appointment the caller is a party to. Strangers get
// a 404 so appointment ids do not leak.
func (h *handlers) loadVisible(w http.ResponseWriter, r *http.Request) (*appointment.Appointment, bool) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return nil, false
	}
	appt, err := h.appointments.GetAppointment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !caller(r).CanSee(appt.PatientID, appt.PractitionerID) {
		h.fail(w, r, appointment.ErrAppointmentNotFound)
		return nil, false
	}
	return appt, true
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) appointmentReminders(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	rs, err := h.appointments.RemindersFor(r.Context(), appt.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// practitionerTransition applies a status change that only the appointment's
// practitioner or an administrator may make.
func (h *handlers) practitionerTransition(apply func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := h.loadVisible(w, r)
		if !ok {
			return
		}
		if !caller(r).ActsFor(appt.PractitionerID) {
			forbidden(w)
			return
		}
		updated, err := apply(r, appt.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func (h *handlers) confirmAppointment() http.HandlerFunc {
	return h.practitionerTransition(func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.Confirm(r.Context(), id)
	})
}

func (h *handlers) cancelAppointment() http.HandlerFunc {
	return h.practitionerTransition(func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.Cancel(r.Context(), id)
	})
}

func (h *handlers) markNoShow() http.HandlerFunc {
	return h.practitionerTransition(func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.MarkNoShow(r.Context(), id)
	})
}

// Cancellation requests

func (h *handlers) requestCancellation(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	var body CancellationRequestBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	req, err := h.appointments.RequestCancellation(r.Context(), appt.ID, body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCancellationResponse(req))
}

func (h *handlers) listCancellationRequests(w http.ResponseWriter, r *http.Request) {
	status := appointment.CancellationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown cancellation request status")
		return
	}
	reqs, err := h.appointments.ListCancellationRequests(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]CancellationResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, toCancellationResponse(&reqs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) resolveCancellation(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var (
			req *appointment.CancellationRequest
			err error
		)
		if accept {
			req, err = h.appointments.AcceptCancellation(r.Context(), id)
		} else {
			req, err = h.appointments.RejectCancellation(r.Context(), id)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCancellationResponse(req))
	}
}

// Reminders and statistics

func (h *handlers) listReminders(w http.ResponseWriter, r *http.Request) {
	var sent *bool
	if v := r.URL.Query().Get("sent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_sent", "sent must be true or false")
			return
		}
		sent = &b
	}
	rs, err := h.appointments.ListReminders(r.Context(), sent)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// listAuditLogs serves ?limit= (default 100, at most 1000) and ?event_type=.
func (h *handlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{EventType: r.URL.Query().Get("event_type")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > audit.MaxListLimit {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and "+strconv.Itoa(audit.MaxListLimit))
			return
		}
		q.Limit = n
	}

	entries, err := h.auditLog.ListEntries(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) monthlyStats(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now().In(calendar.Location())
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be a positive integer")
			return
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be between 1 and 12")
			return
		}
		month = time.Month(m)
	}

	st, err := h.appointments.MonthlyStats(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
