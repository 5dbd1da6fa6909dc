package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
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

func TestMain(m *testing.M) {
	calendar.SetLocation(time.UTC)
	os.Exit(m.Run())
}

// ---------- Mocks ----------

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// ---------- Helper ----------

var secret = []byte("test-secret")

type testServer struct {
	handler      http.Handler
	practitioner uuid.UUID
	patient      uuid.UUID
	other        uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	avail := availability.NewMemoryStore()
	p := avail.AddPractitioner(availability.Practitioner{Name: "Dr. Martin", Active: true})
	if _, err := avail.CreateWindow(context.Background(), availability.WeeklyWindow{
		PractitionerID: p.ID,
		DayOfWeek:      1,
		Start:          calendar.NewTimeOfDay(9, 0),
		End:            calendar.NewTimeOfDay(12, 0),
	}); err != nil {
		t.Fatalf("create window: %v", err)
	}

	repo := appointment.NewMemoryRepository()
	alice := repo.AddPatient(appointment.Patient{Name: "Alice"})
	bob := repo.AddPatient(appointment.Patient{Name: "Bob"})

	clock := calendar.NewFixedClock(time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC))
	sink := audit.NewMemorySink()
	rec := audit.NewRecorder(sink, zerolog.Nop())

	handler := NewRouter(RouterConfig{
		Appointments: appointment.NewService(repo, avail, nil, clock, rec, zerolog.Nop()),
		Availability: availability.NewManager(avail, rec),
		Slots:        slots.NewEngine(avail, repo, clock),
		AuditLog:     sink,
		Clock:        clock,
		JWTSecret:    secret,
		Logger:       zerolog.Nop(),
		Env:          "test",
		Version:      "test",
	})

	return &testServer{handler: handler, practitioner: p.ID, patient: alice.ID, other: bob.ID}
}

func (s *testServer) do(t *testing.T, p *principal.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		tok, err := principal.Sign(*p, secret, time.Hour)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func ptr(p principal.Principal) *principal.Principal { return &p }

func (s *testServer) booking(at string) map[string]any {
	return map[string]any{
		"practitioner_id": s.practitioner.String(),
		"patient_id":      s.patient.String(),
		"date_time":       at,
		"reason":          "checkup",
	}
}

// ---------- Tests ----------

func TestHealth(t *testing.T) {
	cases := []struct {
		name       string
		pg, redis  Pinger
		wantCode   int
		wantStatus string
	}{
		{"all up", stubPinger{}, stubPinger{}, http.StatusOK, "ok"},
		{"redis down", stubPinger{}, stubPinger{err: errors.New("refused")}, http.StatusOK, "degraded"},
		{"postgres down", stubPinger{err: errors.New("refused")}, stubPinger{}, http.StatusServiceUnavailable, "error"},
		{"nothing configured", nil, nil, http.StatusOK, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.pg, tc.redis, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if got := decode[ReadinessResponse](t, rec); got.Status != tc.wantStatus {
				t.Errorf("expected status %q, got %q", tc.wantStatus, got.Status)
			}
		})
	}
}

func TestRouter_LivenessIsPublic(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, nil, http.MethodGet, "/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, nil, http.MethodGet, "/appointments", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	s := newTestServer(t)
	alice := ptr(principal.Patient(s.patient))

	rec := s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[BookingResponse](t, rec)
	if resp.Status != string(appointment.StatusPending) {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if len(resp.Reminders) != 2 {
		t.Errorf("expected 2 reminders, got %d", len(resp.Reminders))
	}

	rec = s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second booking, got %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "slot_taken" {
		t.Errorf("expected slot_taken, got %s", got.Error)
	}
}

func TestCreateAppointment_Errors(t *testing.T) {
	s := newTestServer(t)
	alice := ptr(principal.Patient(s.patient))

	cases := []struct {
		name     string
		who      *principal.Principal
		body     any
		wantCode int
		wantErr  string
	}{
		{"outside hours", alice, s.booking("2024-01-15T13:00:00Z"), http.StatusUnprocessableEntity, "outside_working_hours"},
		{"in the past", alice, s.booking("2024-01-15T07:00:00Z"), http.StatusUnprocessableEntity, "past_date_time"},
		{"missing practitioner", alice, map[string]any{"patient_id": s.patient.String(), "date_time": "2024-01-15T09:00:00Z"}, http.StatusBadRequest, "validation_failed"},
		{"unknown field", alice, map[string]any{"practitioner_id": s.practitioner.String(), "patient_id": s.patient.String(), "date_time": "2024-01-15T09:00:00Z", "room": 4}, http.StatusBadRequest, "invalid_request_body"},
		{"booking for someone else", ptr(principal.Patient(s.other)), s.booking("2024-01-15T09:00:00Z"), http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.who, http.MethodPost, "/appointments", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Error != tc.wantErr {
				t.Errorf("expected %s, got %s", tc.wantErr, got.Error)
			}
		})
	}
}

func TestSlots_ExcludeBookedStart(t *testing.T) {
	s := newTestServer(t)
	path := "/practitioners/" + s.practitioner.String() + "/slots?date=2024-01-15"
	alice := ptr(principal.Patient(s.patient))

	rec := s.do(t, alice, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[SlotsResponse](t, rec); len(got.Slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(got.Slots))
	}

	s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T10:00:00Z"))

	got := decode[SlotsResponse](t, s.do(t, alice, http.MethodGet, path, nil))
	if len(got.Slots) != 5 {
		t.Fatalf("expected 5 slots after booking, got %d", len(got.Slots))
	}
	for _, slot := range got.Slots {
		if slot.Hour() == 10 && slot.Minute() == 0 {
			t.Error("booked 10:00 slot still listed")
		}
	}

	if rec := s.do(t, alice, http.MethodGet, "/practitioners/"+s.practitioner.String()+"/slots?date=15-01-2024", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on malformed date, got %d", rec.Code)
	}
}

func TestGetAppointment_HiddenFromStrangers(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, ptr(principal.Patient(s.patient)), http.MethodPost, "/appointments", s.booking("2024-01-15T09:30:00Z"))
	appt := decode[BookingResponse](t, rec)
	path := "/appointments/" + appt.ID.String()

	if rec := s.do(t, ptr(principal.Patient(s.other)), http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("stranger: expected 404, got %d", rec.Code)
	}
	if rec := s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Errorf("practitioner: expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, ptr(principal.Admin()), http.MethodGet, "/appointments/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", rec.Code)
	}
}

func TestConfirm_OnlyByPractitioner(t *testing.T) {
	s := newTestServer(t)
	appt := decode[BookingResponse](t, s.do(t, ptr(principal.Patient(s.patient)), http.MethodPost, "/appointments", s.booking("2024-01-15T11:00:00Z")))
	path := "/appointments/" + appt.ID.String() + "/confirm"

	if rec := s.do(t, ptr(principal.Patient(s.patient)), http.MethodPost, path, nil); rec.Code != http.StatusForbidden {
		t.Errorf("patient: expected 403, got %d", rec.Code)
	}

	rec := s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodPost, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("practitioner: expected 200, got %d", rec.Code)
	}
	if got := decode[AppointmentResponse](t, rec); got.Status != string(appointment.StatusConfirmed) {
		t.Errorf("expected confirmed, got %s", got.Status)
	}

	if rec := s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodPost, path, nil); rec.Code != http.StatusConflict {
		t.Errorf("confirming twice: expected 409, got %d", rec.Code)
	}
}

func TestCancellationFlow(t *testing.T) {
	s := newTestServer(t)
	alice := ptr(principal.Patient(s.patient))
	admin := ptr(principal.Admin())

	appt := decode[BookingResponse](t, s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z")))

	rec := s.do(t, alice, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancellation-requests", map[string]any{"reason": "sick"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	req := decode[CancellationResponse](t, rec)

	if rec := s.do(t, alice, http.MethodGet, "/cancellation-requests", nil); rec.Code != http.StatusForbidden {
		t.Errorf("patient listing requests: expected 403, got %d", rec.Code)
	}
	pending := decode[[]CancellationResponse](t, s.do(t, admin, http.MethodGet, "/cancellation-requests?status=pending", nil))
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}

	rec = s.do(t, admin, http.MethodPost, "/cancellation-requests/"+req.ID.String()+"/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d", rec.Code)
	}
	if got := decode[CancellationResponse](t, rec); got.Status != string(appointment.CancellationAccepted) || got.ResolvedAt == nil {
		t.Errorf("expected accepted with resolved_at, got %+v", got)
	}

	if rec := s.do(t, admin, http.MethodPost, "/cancellation-requests/"+req.ID.String()+"/reject", nil); rec.Code != http.StatusConflict {
		t.Errorf("resolving twice: expected 409, got %d", rec.Code)
	}

	// The freed slot can be booked again.
	if rec := s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z")); rec.Code != http.StatusCreated {
		t.Errorf("rebooking freed slot: expected 201, got %d", rec.Code)
	}
}

func TestListAppointments_ScopedToCaller(t *testing.T) {
	s := newTestServer(t)
	s.do(t, ptr(principal.Patient(s.patient)), http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z"))

	// Bob asks for Alice's appointments and gets only his own.
	got := decode[[]AppointmentResponse](t, s.do(t, ptr(principal.Patient(s.other)), http.MethodGet, "/appointments?patient_id="+s.patient.String(), nil))
	if len(got) != 0 {
		t.Errorf("expected no appointments for bob, got %d", len(got))
	}

	got = decode[[]AppointmentResponse](t, s.do(t, ptr(principal.Admin()), http.MethodGet, "/appointments?status=pending", nil))
	if len(got) != 1 {
		t.Errorf("expected 1 pending appointment, got %d", len(got))
	}

	if rec := s.do(t, ptr(principal.Admin()), http.MethodGet, "/appointments?status=lost", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: expected 400, got %d", rec.Code)
	}
}

func TestWindows(t *testing.T) {
	s := newTestServer(t)
	path := "/practitioners/" + s.practitioner.String() + "/windows"
	doctor := ptr(principal.Practitioner(s.practitioner))

	if rec := s.do(t, ptr(principal.Practitioner(uuid.New())), http.MethodPost, path, map[string]any{"day_of_week": 2, "start": "09:00", "end": "12:00"}); rec.Code != http.StatusForbidden {
		t.Errorf("other practitioner: expected 403, got %d", rec.Code)
	}

	rec := s.do(t, doctor, http.MethodPost, path, map[string]any{"day_of_week": 1, "start": "11:00", "end": "13:00"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap: expected 409, got %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "window_overlap" {
		t.Errorf("expected window_overlap, got %s", got.Error)
	}

	if rec := s.do(t, doctor, http.MethodPost, path, map[string]any{"day_of_week": 2, "start": "9h", "end": "12:00"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad time: expected 400, got %d", rec.Code)
	}

	rec = s.do(t, doctor, http.MethodPost, path, map[string]any{"day_of_week": 3, "start": "22:00", "end": "24:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("window to midnight: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[WindowResponse](t, rec); got.End != calendar.EndOfDay {
		t.Errorf("expected end 24:00, got %s", got.End)
	}
	rec = s.do(t, doctor, http.MethodPost, path, map[string]any{"day_of_week": 4, "start": "24:00", "end": "24:00"})
	if got := decode[ErrorResponse](t, rec); rec.Code != http.StatusBadRequest || got.Error != "invalid_window" {
		t.Errorf("start at 24:00: expected 400 invalid_window, got %d %s", rec.Code, got.Error)
	}

	rec = s.do(t, doctor, http.MethodPost, path, map[string]any{"day_of_week": 2, "start": "14:00", "end": "17:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[WindowResponse](t, rec)

	if got := decode[[]WindowResponse](t, s.do(t, doctor, http.MethodGet, path, nil)); len(got) != 3 {
		t.Errorf("expected 3 windows, got %d", len(got))
	}

	if rec := s.do(t, doctor, http.MethodDelete, path+"/"+created.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if rec := s.do(t, doctor, http.MethodDelete, path+"/"+created.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestUnavailability_RemovesSlotsAndAvailability(t *testing.T) {
	s := newTestServer(t)
	base := "/practitioners/" + s.practitioner.String()
	doctor := ptr(principal.Practitioner(s.practitioner))

	rec := s.do(t, doctor, http.MethodPost, base+"/unavailabilities", map[string]any{"start_date": "2024-01-15", "end_date": "2024-01-14"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", rec.Code)
	}

	rec = s.do(t, doctor, http.MethodPost, base+"/unavailabilities", map[string]any{"start_date": "2024-01-15", "end_date": "2024-01-15", "reason": "training"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := decode[SlotsResponse](t, s.do(t, doctor, http.MethodGet, base+"/slots?date=2024-01-15", nil)); len(got.Slots) != 0 {
		t.Errorf("expected no slots on leave day, got %d", len(got.Slots))
	}
	if got := decode[PractitionerResponse](t, s.do(t, doctor, http.MethodGet, base, nil)); got.AvailableToday {
		t.Error("expected available_today=false on leave day")
	}
}

func TestSetActive_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	path := "/practitioners/" + s.practitioner.String() + "/active"

	if rec := s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodPut, path, map[string]any{"active": false}); rec.Code != http.StatusForbidden {
		t.Errorf("practitioner: expected 403, got %d", rec.Code)
	}
	if rec := s.do(t, ptr(principal.Admin()), http.MethodPut, path, map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing flag: expected 400, got %d", rec.Code)
	}

	rec := s.do(t, ptr(principal.Admin()), http.MethodPut, path, map[string]any{"active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[PractitionerResponse](t, rec); got.Active {
		t.Error("expected practitioner to be inactive")
	}

	booking := s.booking("2024-01-15T09:00:00Z")
	rec = s.do(t, ptr(principal.Patient(s.patient)), http.MethodPost, "/appointments", booking)
	if got := decode[ErrorResponse](t, rec); got.Error != "practitioner_inactive" {
		t.Errorf("expected practitioner_inactive, got %s", got.Error)
	}
}

func TestPlanningAndStats(t *testing.T) {
	s := newTestServer(t)
	alice := ptr(principal.Patient(s.patient))
	s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z"))
	s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:30:00Z"))

	planningPath := "/practitioners/" + s.practitioner.String() + "/planning?date=2024-01-17"
	if rec := s.do(t, alice, http.MethodGet, planningPath, nil); rec.Code != http.StatusForbidden {
		t.Errorf("patient planning: expected 403, got %d", rec.Code)
	}
	plan := decode[PlanningResponse](t, s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodGet, planningPath, nil))
	if !plan.WeekStart.Equal(calendar.NewDate(2024, time.January, 15)) {
		t.Errorf("expected week to start on 2024-01-15, got %s", plan.WeekStart)
	}
	if len(plan.Appointments) != 2 {
		t.Errorf("expected 2 appointments in planning, got %d", len(plan.Appointments))
	}

	rec := s.do(t, ptr(principal.Practitioner(s.practitioner)), http.MethodGet, "/practitioners/"+s.practitioner.String()+"/planning.ics?date=2024-01-17", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("planning.ics: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/calendar") {
		t.Errorf("expected text/calendar, got %q", got)
	}
	if n := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); n != 2 {
		t.Errorf("expected 2 events in feed, got %d", n)
	}

	rec = s.do(t, ptr(principal.Admin()), http.MethodGet, "/stats/monthly?year=2024&month=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := decode[appointment.Stats](t, rec)
	if st.Total != 2 || st.ByStatus[appointment.StatusPending] != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if len(st.ByPractitioner) != 1 || st.ByPractitioner[0].PractitionerID != s.practitioner || st.ByPractitioner[0].Count != 2 {
		t.Errorf("unexpected practitioner breakdown: %+v", st.ByPractitioner)
	}
	if len(st.BySpecialty) != 1 || st.BySpecialty[0].Specialty != appointment.UnspecifiedSpecialty {
		t.Errorf("unexpected specialty breakdown: %+v", st.BySpecialty)
	}

	if rec := s.do(t, ptr(principal.Admin()), http.MethodGet, "/stats/monthly?month=13", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("month 13: expected 400, got %d", rec.Code)
	}

	reminders := decode[[]map[string]any](t, s.do(t, ptr(principal.Admin()), http.MethodGet, "/reminders?sent=false", nil))
	if len(reminders) != 4 {
		t.Errorf("expected 4 unsent reminders, got %d", len(reminders))
	}
}

func TestAuditLogs(t *testing.T) {
	s := newTestServer(t)
	alice := ptr(principal.Patient(s.patient))
	admin := ptr(principal.Admin())

	appt := decode[BookingResponse](t, s.do(t, alice, http.MethodPost, "/appointments", s.booking("2024-01-15T09:00:00Z")))
	req := decode[CancellationResponse](t, s.do(t, alice, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancellation-requests", map[string]any{"reason": "sick"}))
	if rec := s.do(t, admin, http.MethodPost, "/cancellation-requests/"+req.ID.String()+"/accept", nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d", rec.Code)
	}

	if rec := s.do(t, alice, http.MethodGet, "/audit-logs", nil); rec.Code != http.StatusForbidden {
		t.Errorf("patient reading audit log: expected 403, got %d", rec.Code)
	}

	all := decode[[]audit.Entry](t, s.do(t, admin, http.MethodGet, "/audit-logs", nil))
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].EventType != appointment.EventCancellationAccepted {
		t.Errorf("expected newest entry first, got %s", all[0].EventType)
	}
	if all[0].ActorKind != string(principal.KindAdmin) || all[0].ActorID != nil {
		t.Errorf("expected admin actor without id, got %q %v", all[0].ActorKind, all[0].ActorID)
	}
	if all[2].ActorKind != string(principal.KindPatient) || all[2].ActorID == nil || *all[2].ActorID != s.patient {
		t.Errorf("expected patient actor on booking, got %q %v", all[2].ActorKind, all[2].ActorID)
	}

	if got := decode[[]audit.Entry](t, s.do(t, admin, http.MethodGet, "/audit-logs?limit=1", nil)); len(got) != 1 {
		t.Errorf("limit=1: expected 1 entry, got %d", len(got))
	}
	if got := decode[[]audit.Entry](t, s.do(t, admin, http.MethodGet, "/audit-logs?event_type=requested", nil)); len(got) != 1 || got[0].EventType != appointment.EventCancellationRequested {
		t.Errorf("event_type filter: unexpected %+v", got)
	}

	for _, bad := range []string{"0", "1001", "many"} {
		if rec := s.do(t, admin, http.MethodGet, "/audit-logs?limit="+bad, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", bad, rec.Code)
		}
	}
}
