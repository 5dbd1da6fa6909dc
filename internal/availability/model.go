package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// SlotGranularity is the fixed length of a bookable slot.
const SlotGranularity = 30 * time.Minute

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyWindow is a recurring span on one ISO weekday during which the
// practitioner normally works. Start is inclusive, End exclusive.
type WeeklyWindow struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	DayOfWeek      int
	Start          calendar.TimeOfDay
	End            calendar.TimeOfDay
	CreatedAt      time.Time
}

func (w WeeklyWindow) Overlaps(o WeeklyWindow) bool {
	return w.DayOfWeek == o.DayOfWeek && w.Start < o.End && o.Start < w.End
}

// SlotStarts lists every slot start on d whose full granularity fits before End.
func (w WeeklyWindow) SlotStarts(d calendar.Date) []time.Time {
	end := calendar.Combine(d, w.End)
	var out []time.Time
	for t := calendar.Combine(d, w.Start); !t.Add(SlotGranularity).After(end); t = t.Add(SlotGranularity) {
		out = append(out, t)
	}
	return out
}

// HasSlotAt reports whether t is one of SlotStarts(DateOf(t)).
func (w WeeklyWindow) HasSlotAt(t time.Time) bool {
	d := calendar.DateOf(t)
	if calendar.DayOfWeek(d) != w.DayOfWeek {
		return false
	}
	start := calendar.Combine(d, w.Start)
	end := calendar.Combine(d, w.End)
	if t.Before(start) || t.Add(SlotGranularity).After(end) {
		return false
	}
	return t.Sub(start)%SlotGranularity == 0
}

// Unavailability blocks every day from StartDate to EndDate, both included.
type Unavailability struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartDate      calendar.Date
	EndDate        calendar.Date
	Reason         string
	CreatedAt      time.Time
}

func (u Unavailability) Contains(d calendar.Date) bool {
	return !d.Before(u.StartDate) && !d.After(u.EndDate)
}
