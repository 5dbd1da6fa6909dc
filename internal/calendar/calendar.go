package calendar

import (
	"fmt"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

var (
	locMu sync.RWMutex
	loc   = time.Local
)

// SetLocation sets the process-wide zone used by Combine and DateOf.
func SetLocation(l *time.Location) {
	if l == nil {
		return
	}
	locMu.Lock()
	loc = l
	locMu.Unlock()
}

// Location returns the process-wide zone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return loc
}

// Date is a calendar day without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises out-of-range values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, Location()))
}

// DateOf returns the day t falls on in the process-wide zone.
func DateOf(t time.Time) Date {
	y, m, d := t.In(Location()).Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, Location())
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Midnight is the first instant of the day.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, Location())
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Before(o Date) bool { return d.compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.compare(o) == 0 }
func (d Date) IsZero() bool       { return d == Date{} }

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayOfWeek returns the ISO weekday: 1 = Monday ... 7 = Sunday.
func DayOfWeek(d Date) int {
	wd := d.Midnight().Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// Combine joins a day and a wall-clock time in the process-wide zone.
func Combine(d Date, t TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, Location())
}

// MonthRange returns the half-open interval [first day, first day of next month).
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, Location())
	return first, first.AddDate(0, 1, 0)
}

// WeekRange returns [Monday, next Monday) for the ISO week containing d.
func WeekRange(d Date) (Date, Date) {
	monday := d.AddDays(1 - DayOfWeek(d))
	return monday, monday.AddDays(7)
}
