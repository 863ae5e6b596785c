// Package calendar turns stored time spans into the set of calendar dates
// they cover, filtered by an optional year and month.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/mo"

	"github.com/dukerupert/dateplan/internal/recurrence"
)

// Filter selects calendar dates by year, month, both or neither. A month
// without a year matches that month in every year.
type Filter struct {
	Year  mo.Option[int]
	Month mo.Option[int]
}

// NewFilter builds a Filter from optional query values.
func NewFilter(year, month *int) Filter {
	var f Filter
	if year != nil {
		f.Year = mo.Some(*year)
	}
	if month != nil {
		f.Month = mo.Some(*month)
	}
	return f
}

func (f Filter) Validate() error {
	if y, ok := f.Year.Get(); ok && (y < 1 || y > 9999) {
		return fmt.Errorf("year out of range: %d", y)
	}
	if m, ok := f.Month.Get(); ok && (m < 1 || m > 12) {
		return fmt.Errorf("month out of range: %d", m)
	}
	return nil
}

// Match reports whether the date d passes the filter.
func (f Filter) Match(d time.Time) bool {
	if y, ok := f.Year.Get(); ok && d.Year() != y {
		return false
	}
	if m, ok := f.Month.Get(); ok && int(d.Month()) != m {
		return false
	}
	return true
}

// Window returns the half-open instant range [from, to) in loc that can
// contain matching dates. A filter without a year cannot be narrowed and
// returns zero bounds.
func (f Filter) Window(loc *time.Location) (from, to time.Time) {
	y, ok := f.Year.Get()
	if !ok {
		return time.Time{}, time.Time{}
	}
	if m, ok := f.Month.Get(); ok {
		from = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	}
	from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(1, 0, 0)
}

// Span is a stored [Start, End] interval.
type Span struct {
	Start time.Time
	End   time.Time
}

// Days lists every calendar date from start to end inclusive, read as wall
// clock dates in loc. Dates are returned as midnight UTC.
func Days(start, end time.Time, loc *time.Location) []time.Time {
	first := recurrence.DateOf(start.In(loc))
	last := recurrence.DateOf(end.In(loc))

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Collect expands every span into its days, keeps the ones matching f and
// returns them without duplicates in ascending order.
func Collect(spans []Span, f Filter, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, sp := range spans {
		for _, d := range Days(sp.Start, sp.End, loc) {
			if f.Match(d) {
				seen[d] = struct{}{}
			}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// DayWindow returns the instants [from, to) covering the wall-clock date of
// day in loc.
func DayWindow(day time.Time, loc *time.Location) (from, to time.Time) {
	from = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}
