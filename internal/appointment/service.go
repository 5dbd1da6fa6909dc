package appointment

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

const (
	EventAppointmentCreated    = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed  = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled  = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow     = "APPOINTMENT_NO_SHOW"
	EventCancellationRequested = "CANCELLATION_REQUESTED"
	EventCancellationAccepted  = "CANCELLATION_ACCEPTED"
	EventCancellationRejected  = "CANCELLATION_REJECTED"
)

// Booking rejections, in the order Book evaluates them.
var (
	ErrPastDateTime            = errors.New("appointment date is in the past")
	ErrPractitionerInactive    = errors.New("practitioner is not active")
	ErrPractitionerUnavailable = errors.New("practitioner is unavailable on this date")
	ErrOutsideWorkingHours     = errors.New("time is outside the practitioner's working hours")
	ErrSlotTaken               = errors.New("slot is already booked")
	// ErrSlotBusy means another booking for the slot is in flight and the
	// slot is still free. The caller may retry.
	ErrSlotBusy                = errors.New("slot is being booked, retry")
)

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCancellationResolved    = errors.New("cancellation request is already resolved")
)

const (
	// TopPractitioners caps Stats.ByPractitioner.
	TopPractitioners = 10
	// UnspecifiedSpecialty groups practitioners without a specialty.
	UnspecifiedSpecialty = "unspecified"
)

const (
	defaultLockAttempts = 3
	defaultLockBackoff  = 50 * time.Millisecond
)

// PractitionerStore is the availability read side the service needs.
type PractitionerStore interface {
	availability.Store
	GetPractitioner(ctx context.Context, id uuid.UUID) (*availability.Practitioner, error)
}

type Service struct {
	repo   Repository
	avail  PractitionerStore
	locker redisclient.Locker
	clock  calendar.Clock
	audit  *audit.Recorder
	logger zerolog.Logger

	lockAttempts int
	lockBackoff  time.Duration
}

func NewService(repo Repository, avail PractitionerStore, locker redisclient.Locker, clock calendar.Clock, rec *audit.Recorder, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	return &Service{
		repo:   repo,
		avail:  avail,
		locker: locker,
		clock:  clock,
		audit:  rec,
		logger: logger.With().Str("component", "appointment_service").Logger(),

		lockAttempts: defaultLockAttempts,
		lockBackoff:  defaultLockBackoff,
	}
}

// Book validates a booking request against the practitioner's availability
// and existing appointments, then stores a pending appointment together with
// its reminders.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	// Validate patient exists
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	dt := req.DateTime
	if !dt.After(s.clock.Now()) {
		return nil, ErrPastDateTime
	}

	active, err := s.avail.IsActive(ctx, req.PractitionerID)
	if err != nil {
		if errors.Is(err, availability.ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}
	if !active {
		return nil, ErrPractitionerInactive
	}

	date := calendar.DateOf(dt)
	off, err := s.avail.IsUnavailable(ctx, req.PractitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("check unavailability: %w", err)
	}
	if off {
		return nil, ErrPractitionerUnavailable
	}

	windows, err := s.avail.WeeklyWindows(ctx, req.PractitionerID, calendar.DayOfWeek(date))
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}
	if !inAnyWindow(windows, dt) {
		return nil, ErrOutsideWorkingHours
	}

	var created *Appointment
	commit := func(lockCtx context.Context) error {
		// Inside the critical section re-check the slot
		taken, err := s.repo.ExistsActive(lockCtx, req.PractitionerID, dt)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		appt := Appointment{
			ID:             uuid.New(),
			PatientID:      req.PatientID,
			PractitionerID: req.PractitionerID,
			DateTime:       dt,
			Reason:         strings.TrimSpace(req.Reason),
			Status:         StatusPending,
		}
		a, err := s.repo.CreateBooking(lockCtx, appt, reminder.Derive(appt.ID, dt))
		if err != nil {
			if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrPatientNotFound) {
				return err
			}
			return fmt.Errorf("create booking: %w", err)
		}
		created = a
		return nil
	}

	err = s.withSlotLock(ctx, req.PractitionerID, dt, commit)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		s.logger.Warn().Err(err).
			Str("practitioner_id", req.PractitionerID.String()).
			Time("date_time", dt).
			Msg("slot lock unavailable, relying on storage constraint")
		err = commit(ctx)
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// The holder may still fail; only report the slot as taken once it is.
		taken, checkErr := s.repo.ExistsActive(ctx, req.PractitionerID, dt)
		switch {
		case checkErr != nil:
			err = fmt.Errorf("check slot: %w", checkErr)
		case taken:
			err = ErrSlotTaken
		default:
			err = ErrSlotBusy
		}
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated,
		fmt.Sprintf("appointment booked for %s", dt.Format(time.RFC3339)),
		map[string]any{
			"practitioner_id": req.PractitionerID.String(),
			"patient_id":      req.PatientID.String(),
			"date_time":       dt,
		})

	return created, nil
}

// withSlotLock runs fn under the slot lock, retrying a contended lock up to
// lockAttempts times, lockBackoff apart.
func (s *Service) withSlotLock(ctx context.Context, practitionerID uuid.UUID, dt time.Time, fn func(context.Context) error) error {
	var err error
	for attempt := range s.lockAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.lockBackoff):
			}
		}
		err = s.locker.WithSlotLock(ctx, practitionerID, dt, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
	}
	return err
}

func inAnyWindow(windows []availability.WeeklyWindow, t time.Time) bool {
	for _, w := range windows {
		if w.HasSlotAt(t) {
			return true
		}
	}
	return false
}

// Confirm moves a pending appointment to confirmed. Availability is not
// re-validated.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, []AppointmentStatus{StatusPending}, StatusConfirmed, EventAppointmentConfirmed)
}

// Cancel cancels a pending or confirmed appointment directly, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActiveStatuses, StatusCancelled, EventAppointmentCancelled)
}

// MarkNoShow records that the patient did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActiveStatuses, StatusNoShow, EventAppointmentNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, event string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !hasStatus(from, appt.Status) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status changed between the read and the guarded update.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, event,
		fmt.Sprintf("appointment %s -> %s", appt.Status, to),
		map[string]any{"from": appt.Status, "to": to})

	return updated, nil
}

// RequestCancellation files a cancellation request for a pending or
// confirmed appointment. The appointment is unchanged until an administrator
// resolves the request.
func (s *Service) RequestCancellation(ctx context.Context, appointmentID uuid.UUID, reason string) (*CancellationRequest, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !appt.Status.Active() {
		return nil, ErrInvalidStatusTransition
	}

	req, err := s.repo.CreateCancellationRequest(ctx, CancellationRequest{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		RequestedAt:   s.clock.Now(),
		Reason:        strings.TrimSpace(reason),
		Status:        CancellationPending,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create cancellation request: %w", err)
	}

	s.logEvent(ctx, appointmentID, EventCancellationRequested, "cancellation requested",
		map[string]any{"request_id": req.ID.String(), "reason": req.Reason})

	return req, nil
}

// AcceptCancellation accepts a pending request and cancels its appointment
// in one step.
func (s *Service) AcceptCancellation(ctx context.Context, requestID uuid.UUID) (*CancellationRequest, error) {
	return s.resolve(ctx, requestID, true)
}

// RejectCancellation rejects a pending request and leaves the appointment as is.
func (s *Service) RejectCancellation(ctx context.Context, requestID uuid.UUID) (*CancellationRequest, error) {
	return s.resolve(ctx, requestID, false)
}

func (s *Service) resolve(ctx context.Context, requestID uuid.UUID, accept bool) (*CancellationRequest, error) {
	req, err := s.repo.ResolveCancellation(ctx, requestID, accept, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrCancellationNotFound),
			errors.Is(err, ErrCancellationResolved),
			errors.Is(err, ErrInvalidStatusTransition):
			return nil, err
		}
		return nil, fmt.Errorf("resolve cancellation request: %w", err)
	}

	event := EventCancellationRejected
	if accept {
		event = EventCancellationAccepted
	}
	s.logEvent(ctx, req.AppointmentID, event, fmt.Sprintf("cancellation request %s", req.Status),
		map[string]any{"request_id": req.ID.String()})

	return req, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType, description string, payload map[string]any) {
	apptID := appointmentID
	s.audit.Emit(ctx, audit.Entry{
		EventType:     eventType,
		AppointmentID: &apptID,
		Description:   description,
		Payload:       payload,
	})
}

// Reads

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) GetCancellationRequest(ctx context.Context, id uuid.UUID) (*CancellationRequest, error) {
	return s.repo.GetCancellationRequest(ctx, id)
}

// ListAppointments returns appointments matching f ordered by start time.
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// WeeklyPlanning returns every appointment of the practitioner in the
// Monday-to-Sunday week containing d.
func (s *Service) WeeklyPlanning(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) (calendar.Date, []Appointment, error) {
	monday, next := calendar.WeekRange(d)
	appts, err := s.ListAppointments(ctx, Filter{
		PractitionerID: practitionerID,
		From:           monday.Midnight(),
		To:             next.Midnight(),
	})
	return monday, appts, err
}

func (s *Service) ListCancellationRequests(ctx context.Context, status CancellationStatus) ([]CancellationRequest, error) {
	reqs, err := s.repo.ListCancellationRequests(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list cancellation requests: %w", err)
	}
	return reqs, nil
}

func (s *Service) ListReminders(ctx context.Context, sent *bool) ([]reminder.Reminder, error) {
	rs, err := s.repo.ListReminders(ctx, sent)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return rs, nil
}

func (s *Service) RemindersFor(ctx context.Context, appointmentID uuid.UUID) ([]reminder.Reminder, error) {
	return s.repo.RemindersFor(ctx, appointmentID)
}

// MonthlyStats counts appointments per status, per practitioner and per
// specialty for the given calendar month. CancellationRate is a percentage
// rounded to two decimals.
func (s *Service) MonthlyStats(ctx context.Context, year int, month time.Month) (*Stats, error) {
	from, to := calendar.MonthRange(year, month)
	counts, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	st := &Stats{From: from, To: to, ByStatus: make(map[AppointmentStatus]int)}
	for _, status := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow} {
		st.ByStatus[status] = counts[status]
		st.Total += counts[status]
	}
	if st.Total > 0 {
		rate := float64(st.ByStatus[StatusCancelled]) / float64(st.Total) * 100
		st.CancellationRate = math.Round(rate*100) / 100
	}

	perPractitioner, err := s.repo.CountByPractitioner(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments per practitioner: %w", err)
	}
	if err := s.fillBreakdowns(ctx, st, perPractitioner); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) fillBreakdowns(ctx context.Context, st *Stats, counts map[uuid.UUID]int) error {
	bySpecialty := make(map[string]int)
	all := make([]PractitionerCount, 0, len(counts))
	for id, n := range counts {
		pc := PractitionerCount{PractitionerID: id, Count: n}
		p, err := s.avail.GetPractitioner(ctx, id)
		switch {
		case err == nil:
			pc.Name, pc.Specialty = p.Name, p.Specialty
		case !errors.Is(err, availability.ErrPractitionerNotFound):
			return fmt.Errorf("load practitioner: %w", err)
		}
		all = append(all, pc)

		specialty := UnspecifiedSpecialty
		if pc.Specialty != nil && *pc.Specialty != "" {
			specialty = *pc.Specialty
		}
		bySpecialty[specialty] += n
	}

	slices.SortFunc(all, func(a, b PractitionerCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	st.ByPractitioner = all[:min(len(all), TopPractitioners)]

	st.BySpecialty = make([]SpecialtyCount, 0, len(bySpecialty))
	for name, n := range bySpecialty {
		st.BySpecialty = append(st.BySpecialty, SpecialtyCount{Specialty: name, Count: n})
	}
	slices.SortFunc(st.BySpecialty, func(a, b SpecialtyCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Specialty, b.Specialty)
	})
	return nil
}
