package bucket

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the zone day boundaries are computed in unless configured otherwise.
const DefaultTimezone = "Europe/Moscow"

// Calendar fixes the local day/week/month/year semantics used to derive boundaries.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// DefaultCalendar returns Moscow-local days with weeks starting on Sunday.
// Falls back to UTC when the zone database is unavailable.
func DefaultCalendar() Calendar {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, WeekStart: time.Sunday}
}

// NewCalendar builds a calendar from an IANA zone name and a weekday name ("sunday", "mon", ...).
func NewCalendar(timezone, weekStart string) (Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	day, err := ParseWeekday(weekStart)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{Location: loc, WeekStart: day}, nil
}

// ParseWeekday accepts full or three-letter English weekday names, case-insensitive.
// Empty input means Sunday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (c Calendar) startOfWeek(t time.Time) time.Time {
	day := c.startOfDay(t)
	back := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}

func (c Calendar) startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func (c Calendar) startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// addMonths shifts by whole months, clamping the day like calendar arithmetic does
// (March 31 minus one month is February 28/29, not March 3).
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// endOf turns the start of the following period into the last instant of the current one.
func endOf(nextStart time.Time) time.Time {
	return nextStart.Add(-time.Nanosecond)
}

// Boundaries are the instants bucket predicates compare against. They are derived
// from a single reference instant and never cached between calls.
type Boundaries struct {
	StartOfThisYear  time.Time
	StartOfLastMonth time.Time
	StartOfLastWeek  time.Time
	StartOfYesterday time.Time
	StartOfToday     time.Time
	StartOfTomorrow  time.Time
	EndOfTomorrow    time.Time
	EndOfThisWeek    time.Time
	EndOfNextWeek    time.Time
	EndOfThisMonth   time.Time
	EndOfNextMonth   time.Time
	EndOfThisYear    time.Time
	EndOfNextYear    time.Time
}

// Boundaries computes every bucket edge for now in the calendar's zone.
func (c Calendar) Boundaries(now time.Time) Boundaries {
	now = now.In(c.location())
	today := c.startOfDay(now)
	week := c.startOfWeek(now)
	month := c.startOfMonth(now)
	year := c.startOfYear(now)

	return Boundaries{
		StartOfThisYear:  year,
		StartOfLastMonth: c.startOfMonth(addMonths(now, -1)),
		StartOfLastWeek:  c.startOfWeek(now.AddDate(0, 0, -7)),
		StartOfYesterday: today.AddDate(0, 0, -1),
		StartOfToday:     today,
		StartOfTomorrow:  today.AddDate(0, 0, 1),
		EndOfTomorrow:    endOf(today.AddDate(0, 0, 2)),
		EndOfThisWeek:    endOf(week.AddDate(0, 0, 7)),
		EndOfNextWeek:    endOf(week.AddDate(0, 0, 14)),
		EndOfThisMonth:   endOf(month.AddDate(0, 1, 0)),
		EndOfNextMonth:   endOf(month.AddDate(0, 2, 0)),
		EndOfThisYear:    endOf(year.AddDate(1, 0, 0)),
		EndOfNextYear:    endOf(year.AddDate(2, 0, 0)),
	}
}
