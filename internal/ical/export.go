// Package ical renders a member's calendar as an iCalendar feed.
package ical

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/dukerupert/dateplan/internal/model"
)

const productID = "-//dateplan//calendar export//KO"

// uidSpace namespaces event UIDs so re-exports keep stable identifiers.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://dateplan/ics"))

// Feed collects the records of one calendar export.
type Feed struct {
	Name          string
	Location      *time.Location
	Schedules     []model.Schedule
	Anniversaries []model.Anniversary
	Datings       []model.Dating
}

// Calendar builds the iCalendar document. Schedules and datings become
// timed events; anniversaries become all-day events.
func (f Feed) Calendar(stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}
	if f.Location != nil {
		cal.SetXWRTimezone(f.Location.String())
	}
	stamp = stamp.UTC()

	for _, sc := range f.Schedules {
		ev := cal.AddEvent(UID("schedule", sc.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(sc.StartTime.UTC())
		ev.SetEndAt(sc.EndTime.UTC())
		ev.SetSummary(sc.Title)
		setOptional(ev, sc.Location, sc.Content)
		if !sc.UpdatedAt.IsZero() {
			ev.SetModifiedAt(sc.UpdatedAt.UTC())
		}
	}

	for _, d := range f.Datings {
		ev := cal.AddEvent(UID("dating", d.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(d.StartTime.UTC())
		ev.SetEndAt(d.EndTime.UTC())
		ev.SetSummary(d.Title)
		setOptional(ev, d.Location, d.Content)
	}

	for _, a := range f.Anniversaries {
		ev := cal.AddEvent(UID("anniversary", a.ID))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(a.Date)
		ev.SetAllDayEndAt(a.Date.AddDate(0, 0, 1))
		ev.SetSummary(a.Title)
		ev.SetProperty(ics.ComponentPropertyCategories, string(a.Category))
		if a.Content != "" {
			ev.SetDescription(a.Content)
		}
	}

	return cal
}

// Write serializes the feed to w.
func (f Feed) Write(w io.Writer, stamp time.Time) error {
	if _, err := io.WriteString(w, f.Calendar(stamp).Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

// UID returns the stable event identifier of a stored record.
func UID(kind string, id int64) string {
	return uuid.NewSHA1(uidSpace, []byte(fmt.Sprintf("%s:%d", kind, id))).String() + "@dateplan"
}

func setOptional(ev *ics.VEvent, location, description string) {
	if location != "" {
		ev.SetLocation(location)
	}
	if description != "" {
		ev.SetDescription(description)
	}
}
