package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// MemoryStore is an in-process Repository. It enforces the same window
// non-overlap rule as the Postgres exclusion constraint.
type MemoryStore struct {
	mu               sync.RWMutex
	practitioners    map[uuid.UUID]*Practitioner
	windows          map[uuid.UUID]*WeeklyWindow
	unavailabilities map[uuid.UUID]*Unavailability
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		practitioners:    make(map[uuid.UUID]*Practitioner),
		windows:          make(map[uuid.UUID]*WeeklyWindow),
		unavailabilities: make(map[uuid.UUID]*Unavailability),
	}
}

// AddPractitioner registers a practitioner for setup and seeding.
func (m *MemoryStore) AddPractitioner(p Practitioner) *Practitioner {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.practitioners[p.ID] = &p
	out := p
	return &out
}

func (m *MemoryStore) WeeklyWindows(_ context.Context, practitionerID uuid.UUID, dayOfWeek int) ([]WeeklyWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []WeeklyWindow
	for _, w := range m.windows {
		if w.PractitionerID == practitionerID && w.DayOfWeek == dayOfWeek {
			out = append(out, *w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (m *MemoryStore) IsUnavailable(_ context.Context, practitionerID uuid.UUID, date calendar.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.unavailabilities {
		if u.PractitionerID == practitionerID && u.Contains(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) IsActive(_ context.Context, practitionerID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.practitioners[practitionerID]
	if !ok {
		return false, ErrPractitionerNotFound
	}
	return p.Active, nil
}

func (m *MemoryStore) GetPractitioner(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryStore) SetPractitionerActive(_ context.Context, id uuid.UUID, active bool) (*Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	p.Active = active
	p.UpdatedAt = time.Now()
	out := *p
	return &out, nil
}

func (m *MemoryStore) ListWindows(_ context.Context, practitionerID uuid.UUID) ([]WeeklyWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []WeeklyWindow
	for _, w := range m.windows {
		if w.PractitionerID == practitionerID {
			out = append(out, *w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (m *MemoryStore) CreateWindow(_ context.Context, w WeeklyWindow) (*WeeklyWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.practitioners[w.PractitionerID]; !ok {
		return nil, ErrPractitionerNotFound
	}
	for _, existing := range m.windows {
		if existing.PractitionerID == w.PractitionerID && existing.Overlaps(w) {
			return nil, ErrWindowOverlap
		}
	}

	w.ID = uuid.New()
	w.CreatedAt = time.Now()
	m.windows[w.ID] = &w
	out := w
	return &out, nil
}

func (m *MemoryStore) DeleteWindow(_ context.Context, practitionerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[id]
	if !ok || w.PractitionerID != practitionerID {
		return ErrWindowNotFound
	}
	delete(m.windows, id)
	return nil
}

func (m *MemoryStore) ListUnavailabilities(_ context.Context, practitionerID uuid.UUID) ([]Unavailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Unavailability
	for _, u := range m.unavailabilities {
		if u.PractitionerID == practitionerID {
			out = append(out, *u)
		}
	}
	// Most recent first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func (m *MemoryStore) CreateUnavailability(_ context.Context, u Unavailability) (*Unavailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.practitioners[u.PractitionerID]; !ok {
		return nil, ErrPractitionerNotFound
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.unavailabilities[u.ID] = &u
	out := u
	return &out, nil
}

func (m *MemoryStore) DeleteUnavailability(_ context.Context, practitionerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.unavailabilities[id]
	if !ok || u.PractitionerID != practitionerID {
		return ErrUnavailabilityNotFound
	}
	delete(m.unavailabilities, id)
	return nil
}

func sortWindows(ws []WeeklyWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].DayOfWeek != ws[j].DayOfWeek {
			return ws[i].DayOfWeek < ws[j].DayOfWeek
		}
		return ws[i].Start < ws[j].Start
	})
}
