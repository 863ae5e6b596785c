package recurrence

import "time"

// Occurrence represents a single generated occurrence of a pattern.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Advance returns the date/time of occurrence cycle of a series anchored at
// anchor. It is pure: the same inputs always give the same output.
//
// Monthly and yearly rules are computed from the anchor, not from the
// previous occurrence, and clamp the day to the last day of the target month
// (Jan 31 + 1 month = Feb 28/29, Feb 29 + 1 year = Feb 28). For HundredDays
// the caller passes the day before the first-met date as the anchor.
func Advance(anchor time.Time, rule Rule, cycle int) time.Time {
	switch rule {
	case Daily:
		return addDays(anchor, cycle)
	case Weekly:
		return addDays(anchor, 7*cycle)
	case Monthly:
		return addMonths(anchor, cycle)
	case Yearly:
		return addMonths(anchor, 12*cycle)
	case HundredDays:
		return addDays(anchor, 100*cycle)
	}
	return anchor
}

// Expand generates the occurrences of a series whose first occurrence spans
// [start, end]. Each occurrence keeps the original duration. Generation
// stops at the first cycle whose start falls on a calendar date after until;
// the last occurrence may still end after until. None yields exactly the
// first occurrence.
func Expand(start, end time.Time, rule Rule, until time.Time) []Occurrence {
	if rule == None {
		return []Occurrence{{Start: start, End: end}}
	}

	last := DateOf(until)
	duration := end.Sub(start)
	var results []Occurrence
	for i := 0; ; i++ {
		occStart := Advance(start, rule, i)
		if DateOf(occStart).After(last) {
			break
		}
		results = append(results, Occurrence{
			Start: occStart,
			End:   occStart.Add(duration),
		})
	}
	return results
}

// Date returns the civil date y-m-d as midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time of day from t, keeping the wall-clock date of t's
// location and returning it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

func addDays(t time.Time, days int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addMonths(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := t.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
