package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Rule is the repeat rule of a schedule or anniversary pattern.
type Rule int

const (
	None Rule = iota
	Daily
	Weekly
	Monthly
	Yearly
	HundredDays
)

var ruleNames = map[Rule]string{
	None:        "NONE",
	Daily:       "DAILY",
	Weekly:      "WEEKLY",
	Monthly:     "MONTHLY",
	Yearly:      "YEARLY",
	HundredDays: "HUNDRED_DAYS",
}

// ruleFromName accepts canonical names plus the schedule (N, D, W, M, Y)
// and anniversary (NONE, HUNDRED_DAYS, YEAR) wire tags.
var ruleFromName = map[string]Rule{
	"NONE":         None,
	"DAILY":        Daily,
	"WEEKLY":       Weekly,
	"MONTHLY":      Monthly,
	"YEARLY":       Yearly,
	"HUNDRED_DAYS": HundredDays,
	"N":            None,
	"D":            Daily,
	"W":            Weekly,
	"M":            Monthly,
	"Y":            Yearly,
	"YEAR":         Yearly,
}

var scheduleCodes = map[Rule]string{
	None:    "N",
	Daily:   "D",
	Weekly:  "W",
	Monthly: "M",
	Yearly:  "Y",
}

var anniversaryCodes = map[Rule]string{
	None:        "NONE",
	HundredDays: "HUNDRED_DAYS",
	Yearly:      "YEAR",
}

// ParseRule parses a rule name or wire tag, case-insensitively.
func ParseRule(s string) (Rule, error) {
	r, ok := ruleFromName[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return None, fmt.Errorf("unknown repeat rule: %q", s)
	}
	return r, nil
}

// String returns the canonical name stored in the database.
func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ScheduleCode returns the single-letter schedule tag, or "" if the rule
// cannot repeat a schedule.
func (r Rule) ScheduleCode() string {
	return scheduleCodes[r]
}

// AnniversaryCode returns the anniversary tag, or "" if the rule cannot
// repeat an anniversary.
func (r Rule) AnniversaryCode() string {
	return anniversaryCodes[r]
}

func (r Rule) ValidForSchedule() bool {
	_, ok := scheduleCodes[r]
	return ok
}

func (r Rule) ValidForAnniversary() bool {
	_, ok := anniversaryCodes[r]
	return ok
}

// Repeats reports whether the rule produces more than one occurrence.
func (r Rule) Repeats() bool {
	return r != None
}

// MarshalText writes the canonical name.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts any form ParseRule accepts.
func (r *Rule) UnmarshalText(b []byte) error {
	parsed, err := ParseRule(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r {
	case None:
		return "Does not repeat"
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly"
	case Monthly:
		return "Repeats monthly"
	case Yearly:
		return "Repeats yearly"
	case HundredDays:
		return "Repeats every 100 days"
	}
	return ""
}

// Option builds the RFC 5545 equivalent of the rule starting at start and
// bounded by until. Month-end and Feb 29 anchors use BYSETPOS=-1 over the
// candidate days so the expansion clamps the same way Advance does.
func (r Rule) Option(start, until time.Time) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: start, Until: until}
	switch r {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case HundredDays:
		opt.Freq = rrule.DAILY
		opt.Interval = 100
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if day := start.Day(); day > 28 {
			opt.Bymonthday = clampCandidates(day)
			opt.Bysetpos = []int{-1}
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
		if start.Month() == time.February && start.Day() == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	default:
		return rrule.ROption{}, fmt.Errorf("rule %s has no recurrence", r)
	}
	return opt, nil
}

// RRule renders the rule as an RRULE value (without DTSTART), e.g.
// "FREQ=DAILY;UNTIL=20240103T235959Z". None renders as "".
func (r Rule) RRule(start, until time.Time) (string, error) {
	if r == None {
		return "", nil
	}
	opt, err := r.Option(start, until)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

func clampCandidates(day int) []int {
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days
}
