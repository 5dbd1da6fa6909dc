package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *audit.MemorySink, uuid.UUID) {
	t.Helper()
	store := NewMemoryStore()
	sink := audit.NewMemorySink()
	p := store.AddPractitioner(Practitioner{Name: "Dr. House", Active: true})
	return NewManager(store, audit.NewRecorder(sink, zerolog.Nop())), store, sink, p.ID
}

func tod(h, m int) calendar.TimeOfDay { return calendar.NewTimeOfDay(h, m) }

func TestWeeklyWindow_SlotStarts_NoPartialTrailingSlot(t *testing.T) {
	monday := calendar.NewDate(2024, time.January, 15)
	w := WeeklyWindow{DayOfWeek: 1, Start: tod(9, 0), End: tod(10, 45)}

	got := w.SlotStarts(monday)
	want := []calendar.TimeOfDay{tod(9, 0), tod(9, 30), tod(10, 0)}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(calendar.Combine(monday, want[i])) {
			t.Errorf("slot %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestWeeklyWindow_EndingAtMidnight(t *testing.T) {
	m, _, _, pid := newTestManager(t)
	monday := calendar.NewDate(2024, time.January, 15)

	w, err := m.AddWindow(context.Background(), WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(22, 0), End: calendar.EndOfDay})
	if err != nil {
		t.Fatalf("window ending at 24:00: %v", err)
	}

	got := w.SlotStarts(monday)
	if len(got) != 4 {
		t.Fatalf("expected 4 slots, got %d: %v", len(got), got)
	}
	last := calendar.Combine(monday, tod(23, 30))
	if !got[3].Equal(last) || !w.HasSlotAt(last) {
		t.Errorf("expected 23:30 to be the last slot, got %s", got[3])
	}
	if w.HasSlotAt(calendar.Combine(monday.AddDays(1), tod(0, 0))) {
		t.Error("next midnight belongs to the next day")
	}
}

func TestWeeklyWindow_HasSlotAt(t *testing.T) {
	monday := calendar.NewDate(2024, time.January, 15)
	w := WeeklyWindow{DayOfWeek: 1, Start: tod(9, 0), End: tod(12, 0)}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"window start", calendar.Combine(monday, tod(9, 0)), true},
		{"last full slot", calendar.Combine(monday, tod(11, 30)), true},
		{"window end is exclusive", calendar.Combine(monday, tod(12, 0)), false},
		{"misaligned", calendar.Combine(monday, tod(9, 15)), false},
		{"seconds off", calendar.Combine(monday, tod(9, 0)).Add(time.Second), false},
		{"before window", calendar.Combine(monday, tod(8, 30)), false},
		{"other weekday", calendar.Combine(monday.AddDays(1), tod(9, 0)), false},
	}
	for _, tc := range cases {
		if got := w.HasSlotAt(tc.at); got != tc.want {
			t.Errorf("%s: HasSlotAt(%s) = %t, want %t", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestUnavailability_ContainsIsInclusive(t *testing.T) {
	u := Unavailability{
		StartDate: calendar.NewDate(2024, time.August, 1),
		EndDate:   calendar.NewDate(2024, time.August, 15),
	}
	if !u.Contains(u.StartDate) || !u.Contains(u.EndDate) {
		t.Error("both bounds should be contained")
	}
	if u.Contains(u.StartDate.AddDays(-1)) || u.Contains(u.EndDate.AddDays(1)) {
		t.Error("days outside the range should not be contained")
	}
}

func TestManager_AddWindow_Validation(t *testing.T) {
	m, _, _, pid := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name string
		w    WeeklyWindow
		want error
	}{
		{"day zero", WeeklyWindow{PractitionerID: pid, DayOfWeek: 0, Start: tod(9, 0), End: tod(12, 0)}, ErrInvalidWindow},
		{"day eight", WeeklyWindow{PractitionerID: pid, DayOfWeek: 8, Start: tod(9, 0), End: tod(12, 0)}, ErrInvalidWindow},
		{"start equals end", WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(9, 0), End: tod(9, 0)}, ErrInvalidWindow},
		{"start after end", WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(12, 0), End: tod(9, 0)}, ErrInvalidWindow},
		{"start at end of day", WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: calendar.EndOfDay, End: calendar.EndOfDay + 30}, ErrInvalidWindow},
		{"unknown practitioner", WeeklyWindow{PractitionerID: uuid.New(), DayOfWeek: 1, Start: tod(9, 0), End: tod(12, 0)}, ErrPractitionerNotFound},
	}
	for _, tc := range cases {
		if _, err := m.AddWindow(ctx, tc.w); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestManager_AddWindow_RejectsOverlap(t *testing.T) {
	m, _, sink, pid := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(9, 0), End: tod(12, 0)}); err != nil {
		t.Fatalf("first window: %v", err)
	}
	// Adjacent windows are fine.
	if _, err := m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(12, 0), End: tod(13, 0)}); err != nil {
		t.Fatalf("adjacent window: %v", err)
	}
	// Same hours on another day are fine.
	if _, err := m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 2, Start: tod(9, 0), End: tod(12, 0)}); err != nil {
		t.Fatalf("other day: %v", err)
	}

	_, err := m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 1, Start: tod(11, 0), End: tod(14, 0)})
	if !errors.Is(err, ErrWindowOverlap) {
		t.Fatalf("expected ErrWindowOverlap, got %v", err)
	}

	windows, _ := m.Windows(ctx, pid)
	if len(windows) != 3 {
		t.Errorf("expected 3 windows, got %d", len(windows))
	}
	if got := len(sink.Entries()); got != 3 {
		t.Errorf("expected 3 audit entries, got %d", got)
	}
}

func TestMemoryStore_WeeklyWindowsOrderedByStart(t *testing.T) {
	m, store, _, pid := newTestManager(t)
	ctx := context.Background()

	m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 3, Start: tod(14, 0), End: tod(17, 0)})
	m.AddWindow(ctx, WeeklyWindow{PractitionerID: pid, DayOfWeek: 3, Start: tod(8, 0), End: tod(12, 0)})

	ws, err := store.WeeklyWindows(ctx, pid, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ws) != 2 || ws[0].Start != tod(8, 0) || ws[1].Start != tod(14, 0) {
		t.Errorf("windows not ordered by start: %+v", ws)
	}

	ws, _ = store.WeeklyWindows(ctx, pid, 4)
	if len(ws) != 0 {
		t.Errorf("expected no windows on thursday, got %d", len(ws))
	}
}

func TestManager_Unavailability(t *testing.T) {
	m, store, _, pid := newTestManager(t)
	ctx := context.Background()

	_, err := m.AddUnavailability(ctx, Unavailability{
		PractitionerID: pid,
		StartDate:      calendar.NewDate(2024, time.May, 10),
		EndDate:        calendar.NewDate(2024, time.May, 1),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}

	u, err := m.AddUnavailability(ctx, Unavailability{
		PractitionerID: pid,
		StartDate:      calendar.NewDate(2024, time.May, 1),
		EndDate:        calendar.NewDate(2024, time.May, 1),
		Reason:         "  Formation ",
	})
	if err != nil {
		t.Fatalf("single-day range should be accepted: %v", err)
	}
	if u.Reason != "Formation" {
		t.Errorf("expected trimmed reason, got %q", u.Reason)
	}

	off, _ := store.IsUnavailable(ctx, pid, calendar.NewDate(2024, time.May, 1))
	if !off {
		t.Error("expected practitioner to be unavailable on May 1")
	}
	off, _ = store.IsUnavailable(ctx, pid, calendar.NewDate(2024, time.May, 2))
	if off {
		t.Error("expected practitioner to be available on May 2")
	}

	if err := m.RemoveUnavailability(ctx, pid, u.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := m.RemoveUnavailability(ctx, pid, u.ID); !errors.Is(err, ErrUnavailabilityNotFound) {
		t.Errorf("expected ErrUnavailabilityNotFound on second delete, got %v", err)
	}
}

func TestManager_AvailableOn(t *testing.T) {
	m, _, _, pid := newTestManager(t)
	ctx := context.Background()
	day := calendar.NewDate(2024, time.June, 3)

	ok, err := m.AvailableOn(ctx, pid, day)
	if err != nil || !ok {
		t.Fatalf("expected available, got %t %v", ok, err)
	}

	m.AddUnavailability(ctx, Unavailability{PractitionerID: pid, StartDate: day, EndDate: day})
	if ok, _ := m.AvailableOn(ctx, pid, day); ok {
		t.Error("expected unavailable on leave day")
	}

	m.SetActive(ctx, pid, false)
	if ok, _ := m.AvailableOn(ctx, pid, day.AddDays(1)); ok {
		t.Error("inactive practitioner should never be available")
	}

	if _, err := m.AvailableOn(ctx, uuid.New(), day); !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("expected ErrPractitionerNotFound, got %v", err)
	}
}
