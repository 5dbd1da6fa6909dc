// Package slots computes the bookable start times of a practitioner.
package slots

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Engine struct {
	store  availability.Store
	ledger appointment.Ledger
	clock  calendar.Clock
}

func NewEngine(store availability.Store, ledger appointment.Ledger, clock calendar.Clock) *Engine {
	return &Engine{store: store, ledger: ledger, clock: clock}
}

// DaySlots is the bookable start times of one date.
type DaySlots struct {
	Date  calendar.Date `json:"date"`
	Slots []time.Time   `json:"slots"`
}

// Seq returns the bookable start times of the practitioner on date in
// chronological order. Storage is read once when Seq is called; the returned
// sequence can be ranged over any number of times and always yields the same
// values.
//
// A start time is bookable when the practitioner is active and not on leave
// that day, the full slot fits inside one of the weekly windows, it is still
// in the future and no pending or confirmed appointment starts at it.
func (e *Engine) Seq(ctx context.Context, practitionerID uuid.UUID, date calendar.Date) (iter.Seq[time.Time], error) {
	active, err := e.store.IsActive(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	if !active {
		return empty, nil
	}

	off, err := e.store.IsUnavailable(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("check unavailability: %w", err)
	}
	if off {
		return empty, nil
	}

	windows, err := e.store.WeeklyWindows(ctx, practitionerID, calendar.DayOfWeek(date))
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}
	if len(windows) == 0 {
		return empty, nil
	}

	booked, err := e.ledger.ActiveStartTimes(ctx, practitionerID, date.Midnight(), date.AddDays(1).Midnight())
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, t := range booked {
		taken[t.UnixNano()] = struct{}{}
	}

	var candidates []time.Time
	for _, w := range windows {
		candidates = append(candidates, w.SlotStarts(date)...)
	}
	// Overlapping windows would otherwise repeat or reorder starts.
	slices.SortFunc(candidates, func(a, b time.Time) int { return a.Compare(b) })
	candidates = slices.CompactFunc(candidates, func(a, b time.Time) bool { return a.Equal(b) })
	now := e.clock.Now()

	return func(yield func(time.Time) bool) {
		for _, t := range candidates {
			if !t.After(now) {
				continue
			}
			if _, ok := taken[t.UnixNano()]; ok {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}, nil
}

func empty(func(time.Time) bool) {}

// ForDate collects Seq into a slice. The result is never nil.
func (e *Engine) ForDate(ctx context.Context, practitionerID uuid.UUID, date calendar.Date) ([]time.Time, error) {
	seq, err := e.Seq(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}
	out := slices.Collect(seq)
	if out == nil {
		out = []time.Time{}
	}
	return out, nil
}

// ForWeek returns the slots of each day of the Monday-to-Sunday week that
// contains date.
func (e *Engine) ForWeek(ctx context.Context, practitionerID uuid.UUID, date calendar.Date) ([]DaySlots, error) {
	monday, _ := calendar.WeekRange(date)
	week := make([]DaySlots, 0, 7)
	for i := 0; i < 7; i++ {
		d := monday.AddDays(i)
		ts, err := e.ForDate(ctx, practitionerID, d)
		if err != nil {
			return nil, fmt.Errorf("slots for %s: %w", d, err)
		}
		week = append(week, DaySlots{Date: d, Slots: ts})
	}
	return week, nil
}
