package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

type slotKey struct {
	practitionerID uuid.UUID
	at             int64
}

func keyOf(practitionerID uuid.UUID, at time.Time) slotKey {
	return slotKey{practitionerID: practitionerID, at: at.UnixNano()}
}

// MemoryRepository is an in-process Repository. A single mutex makes each
// method atomic, which gives bookings the same all-or-nothing and slot
// uniqueness guarantees as the Postgres transaction and unique index.
type MemoryRepository struct {
	mu            sync.RWMutex
	patients      map[uuid.UUID]*Patient
	appointments  map[uuid.UUID]*Appointment
	active        map[slotKey]uuid.UUID
	cancellations map[uuid.UUID]*CancellationRequest
	reminders     map[uuid.UUID]*reminder.Reminder

	// FailReminderWrite, when set, makes CreateBooking fail on its last
	// reminder write. The appointment and earlier reminders are already
	// written at that point and are rolled back.
	FailReminderWrite error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:      make(map[uuid.UUID]*Patient),
		appointments:  make(map[uuid.UUID]*Appointment),
		active:        make(map[slotKey]uuid.UUID),
		cancellations: make(map[uuid.UUID]*CancellationRequest),
		reminders:     make(map[uuid.UUID]*reminder.Reminder),
	}
}

// AddPatient registers a patient for setup and seeding.
func (m *MemoryRepository) AddPatient(p Patient) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.patients[p.ID] = &p
	out := p
	return &out
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryRepository) ActiveStartTimes(_ context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []time.Time
	for _, a := range m.appointments {
		if a.PractitionerID != practitionerID || !a.Status.Active() {
			continue
		}
		if a.DateTime.Before(from) || !a.DateTime.Before(to) {
			continue
		}
		out = append(out, a.DateTime)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *MemoryRepository) ExistsActive(_ context.Context, practitionerID uuid.UUID, at time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[keyOf(practitionerID, at)]
	return ok, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.appointments {
		if f.PractitionerID != uuid.Nil && a.PractitionerID != f.PractitionerID {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if !f.From.IsZero() && a.DateTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.DateTime.Before(f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (m *MemoryRepository) CountByStatus(_ context.Context, from, to time.Time) (map[AppointmentStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[AppointmentStatus]int)
	for _, a := range m.appointments {
		if a.DateTime.Before(from) || !a.DateTime.Before(to) {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (m *MemoryRepository) CountByPractitioner(_ context.Context, from, to time.Time) (map[uuid.UUID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for _, a := range m.appointments {
		if a.DateTime.Before(from) || !a.DateTime.Before(to) {
			continue
		}
		counts[a.PractitionerID]++
	}
	return counts, nil
}

func (m *MemoryRepository) CreateBooking(_ context.Context, appt Appointment, reminders []reminder.Reminder) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patients[appt.PatientID]; !ok {
		return nil, ErrPatientNotFound
	}
	key := keyOf(appt.PractitionerID, appt.DateTime)
	if _, taken := m.active[key]; taken {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	appt.Status = StatusPending
	appt.CreatedAt, appt.UpdatedAt = now, now
	m.appointments[appt.ID] = &appt
	m.active[key] = appt.ID

	written := make([]uuid.UUID, 0, len(reminders))
	for i, r := range reminders {
		if m.FailReminderWrite != nil && i == len(reminders)-1 {
			m.rollbackBooking(appt.ID, key, written)
			return nil, m.FailReminderWrite
		}
		r.AppointmentID = appt.ID
		m.reminders[r.ID] = &r
		written = append(written, r.ID)
	}

	out := appt
	return &out, nil
}

// rollbackBooking undoes a partially written booking. Callers hold the write lock.
func (m *MemoryRepository) rollbackBooking(id uuid.UUID, key slotKey, reminderIDs []uuid.UUID) {
	delete(m.appointments, id)
	delete(m.active, key)
	for _, rid := range reminderIDs {
		delete(m.reminders, rid)
	}
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || !hasStatus(from, a.Status) {
		return nil, ErrAppointmentNotFound
	}
	m.setStatus(a, to)
	out := *a
	return &out, nil
}

// setStatus keeps the active slot index in step with the status. Callers
// hold the write lock.
func (m *MemoryRepository) setStatus(a *Appointment, to AppointmentStatus) {
	key := keyOf(a.PractitionerID, a.DateTime)
	if a.Status.Active() && !to.Active() {
		delete(m.active, key)
	}
	a.Status = to
	a.UpdatedAt = time.Now()
}

func (m *MemoryRepository) CreateCancellationRequest(_ context.Context, req CancellationRequest) (*CancellationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[req.AppointmentID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	req.Status = CancellationPending
	req.ResolvedAt = nil
	m.cancellations[req.ID] = &req
	out := req
	return &out, nil
}

func (m *MemoryRepository) GetCancellationRequest(_ context.Context, id uuid.UUID) (*CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cancellations[id]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	out := *c
	return &out, nil
}

func (m *MemoryRepository) ListCancellationRequests(_ context.Context, status CancellationStatus) ([]CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []CancellationRequest
	for _, c := range m.cancellations {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *MemoryRepository) ResolveCancellation(_ context.Context, id uuid.UUID, accept bool, at time.Time) (*CancellationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cancellations[id]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	if c.Status != CancellationPending {
		return nil, ErrCancellationResolved
	}

	if accept {
		a, ok := m.appointments[c.AppointmentID]
		if !ok || !a.Status.Active() {
			return nil, ErrInvalidStatusTransition
		}
		m.setStatus(a, StatusCancelled)
		c.Status = CancellationAccepted
	} else {
		c.Status = CancellationRejected
	}
	resolvedAt := at
	c.ResolvedAt = &resolvedAt

	out := *c
	return &out, nil
}

func (m *MemoryRepository) ListReminders(_ context.Context, sent *bool) ([]reminder.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reminder.Reminder
	for _, r := range m.reminders {
		if sent != nil && r.Sent != *sent {
			continue
		}
		out = append(out, *r)
	}
	sortReminders(out)
	return out, nil
}

func (m *MemoryRepository) RemindersFor(_ context.Context, appointmentID uuid.UUID) ([]reminder.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reminder.Reminder
	for _, r := range m.reminders {
		if r.AppointmentID == appointmentID {
			out = append(out, *r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (m *MemoryRepository) FindDue(_ context.Context, now time.Time, limit int) ([]reminder.Due, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reminder.Due
	for _, r := range m.reminders {
		if r.Sent || r.ScheduledAt.After(now) {
			continue
		}
		a, ok := m.appointments[r.AppointmentID]
		if !ok || !a.Status.Active() || !a.DateTime.After(now) {
			continue
		}
		out = append(out, reminder.Due{
			Reminder:       *r,
			PatientID:      a.PatientID,
			PractitionerID: a.PractitionerID,
			AppointmentAt:  a.DateTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.Sent {
		return reminder.ErrReminderNotFound
	}
	sentAt := at
	r.Sent = true
	r.SentAt = &sentAt
	return nil
}

func hasStatus(ss []AppointmentStatus, s AppointmentStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func sortReminders(rs []reminder.Reminder) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ScheduledAt.Before(rs[j].ScheduledAt) })
}
