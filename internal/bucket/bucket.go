// Package bucket sorts a single owner's tasks into the time buckets shown by the
// list views and decides which list a single task should link back to.
//
// Everything here is a pure function of (tasks, now, calendar): no I/O, no clocks,
// no state shared between calls.
package bucket

import "time"

// Name identifies a bucket.
type Name string

const (
	ALongTimeAgo Name = "a_long_time_ago"
	LastYear     Name = "last_year"
	LastMonth    Name = "last_month"
	LastWeek     Name = "last_week"
	Yesterday    Name = "yesterday"
	Today        Name = "today"
	Tomorrow     Name = "tomorrow"
	ThisWeek     Name = "this_week"
	NextWeek     Name = "next_week"
	ThisMonth    Name = "this_month"
	NextMonth    Name = "next_month"
	ThisYear     Name = "this_year"
	NextYear     Name = "next_year"
	NotVerySoon  Name = "not_very_soon"
	Inbox        Name = "inbox"
)

var titles = map[Name]string{
	ALongTimeAgo: "A Long Time Ago",
	LastYear:     "Last Year",
	LastMonth:    "Last Month",
	LastWeek:     "Last Week",
	Yesterday:    "Yesterday",
	Today:        "Today",
	Tomorrow:     "Tomorrow",
	ThisWeek:     "This Week",
	NextWeek:     "Next Week",
	ThisMonth:    "This Month",
	NextMonth:    "Next Month",
	ThisYear:     "This Year",
	NextYear:     "Next Year",
	NotVerySoon:  "Not Very Soon",
	Inbox:        "Inbox",
}

// Title is the human readable heading for the bucket.
func (n Name) Title() string {
	if t, ok := titles[n]; ok {
		return t
	}
	return string(n)
}

// View is the part of a task the engine looks at.
type View struct {
	Completed bool
	From      *time.Time
	To        *time.Time
}

// Viewer is implemented by anything that can be bucketed.
type Viewer interface {
	BucketView() View
}

// Scheduled reports whether the task has any part of a scheduling window.
func (v View) Scheduled() bool {
	return v.From != nil || v.To != nil
}

// valid is false for windows that end before they start; those are kept out of dated buckets.
func (v View) valid() bool {
	return v.From == nil || v.To == nil || !v.To.Before(*v.From)
}

// date is the instant the predicates test: the end of the window if set, else its start.
func (v View) date() time.Time {
	if v.To != nil {
		return *v.To
	}
	return *v.From
}

func (v View) BucketView() View { return v }

type rule struct {
	name  Name
	match func(d time.Time, completed bool, b *Boundaries) bool
}

// inRange is the half-open interval [lo, hi).
func inRange(d, lo, hi time.Time) bool {
	return !d.Before(lo) && d.Before(hi)
}

// upcoming is [StartOfToday, end].
func upcoming(d, end time.Time, b *Boundaries) bool {
	return !d.Before(b.StartOfToday) && !d.After(end)
}

// pastRules cover everything before today. Completed tasks never count as
// "A Long Time Ago"; the back link check ignores that exclusion.
var pastRules = []rule{
	{ALongTimeAgo, func(d time.Time, completed bool, b *Boundaries) bool {
		return !completed && d.Before(b.StartOfThisYear)
	}},
	{LastYear, func(d time.Time, _ bool, b *Boundaries) bool {
		return inRange(d, b.StartOfThisYear, b.StartOfLastMonth)
	}},
	{LastMonth, func(d time.Time, _ bool, b *Boundaries) bool {
		return inRange(d, b.StartOfLastMonth, b.StartOfLastWeek)
	}},
	{LastWeek, func(d time.Time, _ bool, b *Boundaries) bool {
		return inRange(d, b.StartOfLastWeek, b.StartOfYesterday)
	}},
	{Yesterday, func(d time.Time, _ bool, b *Boundaries) bool { return inRange(d, b.StartOfYesterday, b.StartOfToday) }},
}

var futureRules = []rule{
	{Today, func(d time.Time, _ bool, b *Boundaries) bool { return inRange(d, b.StartOfToday, b.StartOfTomorrow) }},
	{Tomorrow, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfTomorrow, b) }},
	{ThisWeek, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfThisWeek, b) }},
	{NextWeek, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfNextWeek, b) }},
	{ThisMonth, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfThisMonth, b) }},
	{NextMonth, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfNextMonth, b) }},
	{ThisYear, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfThisYear, b) }},
	{NextYear, func(d time.Time, _ bool, b *Boundaries) bool { return upcoming(d, b.EndOfNextYear, b) }},
	// Catch-all: everything after next year, plus completed tasks from before
	// this year that the overdue rule refused.
	{NotVerySoon, func(time.Time, bool, *Boundaries) bool { return true }},
}

// cascade is the full ordered rule table; first match wins.
var cascade = append(append([]rule{}, pastRules...), futureRules...)

// Order lists every bucket in display order, Inbox last.
func Order() []Name {
	names := make([]Name, 0, len(cascade)+1)
	for _, r := range cascade {
		names = append(names, r.name)
	}
	return append(names, Inbox)
}

func locate(v View, b *Boundaries) Name {
	if !v.Scheduled() || !v.valid() {
		return Inbox
	}
	d := v.date()
	for _, r := range cascade {
		if r.match(d, v.Completed, b) {
			return r.name
		}
	}
	return NotVerySoon
}

// Locate returns the single bucket a task belongs to at now.
func Locate(v View, now time.Time, cal Calendar) Name {
	b := cal.Boundaries(now)
	return locate(v, &b)
}

// Set is the result of Classify: every bucket, in display order, each holding its
// tasks in input order.
type Set[T Viewer] struct {
	names []Name
	items map[Name][]T
}

// Get returns the tasks in bucket n (nil when empty).
func (s Set[T]) Get(n Name) []T {
	return s.items[n]
}

// Names returns all bucket names in display order, including empty ones.
func (s Set[T]) Names() []Name {
	return append([]Name(nil), s.names...)
}

// NonEmpty returns the names of buckets holding at least one task, in display order.
func (s Set[T]) NonEmpty() []Name {
	var out []Name
	for _, n := range s.names {
		if len(s.items[n]) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Len counts tasks across all buckets.
func (s Set[T]) Len() int {
	total := 0
	for _, items := range s.items {
		total += len(items)
	}
	return total
}

// Classify partitions tasks into buckets. Boundaries are computed once per call.
func Classify[T Viewer](tasks []T, now time.Time, cal Calendar) Set[T] {
	b := cal.Boundaries(now)
	set := Set[T]{names: Order(), items: make(map[Name][]T)}
	for _, t := range tasks {
		n := locate(t.BucketView(), &b)
		set.items[n] = append(set.items[n], t)
	}
	return set
}

// dayMatch is true when the window's end or start falls inside [lo, hi).
func dayMatch(v View, lo, hi time.Time) bool {
	if v.To != nil && inRange(*v.To, lo, hi) {
		return true
	}
	return v.From != nil && inRange(*v.From, lo, hi)
}

// Agenda is the coarse two-bucket view: incomplete tasks touching today, then
// incomplete tasks touching tomorrow that were not already listed for today.
func Agenda[T Viewer](tasks []T, now time.Time, cal Calendar) (today, tomorrow []T) {
	b := cal.Boundaries(now)
	dayAfter := b.StartOfTomorrow.AddDate(0, 0, 1)
	for _, t := range tasks {
		v := t.BucketView()
		if v.Completed {
			continue
		}
		switch {
		case dayMatch(v, b.StartOfToday, b.StartOfTomorrow):
			today = append(today, t)
		case dayMatch(v, b.StartOfTomorrow, dayAfter):
			tomorrow = append(tomorrow, t)
		}
	}
	return today, tomorrow
}
