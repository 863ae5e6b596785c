// Package schedule materializes a member's repeating schedules, answers
// calendar date queries over them and manages the couple's datings.
package schedule

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

var (
	ErrRepeatEndRequired = fmt.Errorf("%w: repeat end date is required for a repeating schedule", model.ErrInvalidInput)
	ErrInvalidRepeatEnd  = fmt.Errorf("%w: repeat end date is before the start date", model.ErrInvalidInput)
	ErrPastHorizon       = fmt.Errorf("%w: start date is after the calendar horizon", model.ErrInvalidInput)
	ErrSpanTooLong       = fmt.Errorf("%w: a schedule may span at most %d days", model.ErrInvalidInput, maxSpanDays)
)

const (
	maxTitleLen    = 15
	maxLocationLen = 20
	maxContentLen  = 100
	maxSpanDays    = 366
)

// Details are the user-editable fields of one schedule or dating.
type Details struct {
	Title    string
	Content  string
	Location string
	Start    time.Time
	End      time.Time
}

func (d *Details) validate(horizon time.Time) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Location = strings.TrimSpace(d.Location)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}
	if utf8.RuneCountInString(d.Title) > maxTitleLen {
		return fmt.Errorf("%w: title must be at most %d characters", model.ErrInvalidInput, maxTitleLen)
	}
	if utf8.RuneCountInString(d.Location) > maxLocationLen {
		return fmt.Errorf("%w: location must be at most %d characters", model.ErrInvalidInput, maxLocationLen)
	}
	if utf8.RuneCountInString(d.Content) > maxContentLen {
		return fmt.Errorf("%w: content must be at most %d characters", model.ErrInvalidInput, maxContentLen)
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", model.ErrInvalidInput)
	}
	if d.End.Before(d.Start) {
		return model.ErrInvalidRange
	}
	if d.End.Sub(d.Start) > maxSpanDays*24*time.Hour {
		return ErrSpanTooLong
	}
	if recurrence.DateOf(d.Start).After(recurrence.DateOf(horizon)) {
		return ErrPastHorizon
	}
	return nil
}

// Definition describes a schedule series before materialization. Calendar
// dates are read in the location of Start.
type Definition struct {
	Details
	Rule      recurrence.Rule
	RepeatEnd *time.Time
}

// Until returns the last calendar date the series may start on: the repeat
// end date capped at horizon. None series end on their start date.
func (def Definition) Until(horizon time.Time) (time.Time, error) {
	if def.End.Before(def.Start) {
		return time.Time{}, model.ErrInvalidRange
	}
	if !def.Rule.ValidForSchedule() {
		return time.Time{}, fmt.Errorf("%w: rule %s is not a schedule rule", model.ErrInvalidInput, def.Rule)
	}

	startDate := recurrence.DateOf(def.Start)
	h := recurrence.DateOf(horizon)
	if startDate.After(h) {
		return time.Time{}, ErrPastHorizon
	}
	if def.Rule == recurrence.None {
		return startDate, nil
	}
	if def.RepeatEnd == nil {
		return time.Time{}, ErrRepeatEndRequired
	}

	until := recurrence.DateOf(*def.RepeatEnd)
	if until.Before(startDate) {
		return time.Time{}, ErrInvalidRepeatEnd
	}
	if until.After(h) {
		until = h
	}
	return until, nil
}

// Expand materializes every occurrence of def up to its repeat end date or
// horizon, whichever comes first. Nothing is returned on error.
func Expand(def Definition, horizon time.Time) ([]model.Schedule, error) {
	until, err := def.Until(horizon)
	if err != nil {
		return nil, err
	}

	occs := recurrence.Expand(def.Start, def.End, def.Rule, until)
	schedules := make([]model.Schedule, 0, len(occs))
	for _, o := range occs {
		sc, err := model.NewSchedule(def.Title, def.Content, def.Location, o.Start, o.End)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, nil
}
