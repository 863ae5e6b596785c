// Package anniversary materializes birthday, first-met-date and manual
// anniversary series up to the calendar horizon.
package anniversary

import (
	"fmt"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

const firstDateTitle = "처음 만난 날"

// Birthday returns one anniversary per year starting at the birth date
// itself, for every year whose date is strictly before horizon - 1 day.
func Birthday(name string, birth, horizon time.Time) []model.Anniversary {
	limit := horizon.AddDate(0, 0, -1)
	title := name + " 님의 생일"

	var out []model.Anniversary
	for years := 0; ; years++ {
		date := recurrence.Advance(birth, recurrence.Yearly, years)
		if !date.Before(limit) {
			break
		}
		out = append(out, model.Anniversary{
			Title:    title,
			Date:     date,
			Category: model.CategoryBirth,
		})
	}
	return out
}

// FirstDate expands the first-met date with one of the anniversary rules:
// None gives the meeting day itself, HundredDays counts the meeting day as
// day 1 and YEAR starts at the first full year. Repeating series stop
// before horizon + 1 day.
func FirstDate(firstDate time.Time, rule recurrence.Rule, horizon time.Time) ([]model.Anniversary, error) {
	limit := horizon.AddDate(0, 0, 1)

	switch rule {
	case recurrence.None:
		return []model.Anniversary{{
			Title:    firstDateTitle,
			Date:     firstDate,
			Category: model.CategoryFirstDate,
		}}, nil

	case recurrence.HundredDays:
		anchor := firstDate.AddDate(0, 0, -1)
		var out []model.Anniversary
		for cycle := 1; ; cycle++ {
			date := recurrence.Advance(anchor, recurrence.HundredDays, cycle)
			if !date.Before(limit) {
				break
			}
			out = append(out, model.Anniversary{
				Title:    fmt.Sprintf("만난지 %d일", cycle*100),
				Date:     date,
				Category: model.CategoryFirstDate,
			})
		}
		return out, nil

	case recurrence.Yearly:
		var out []model.Anniversary
		for years := 1; ; years++ {
			date := recurrence.Advance(firstDate, recurrence.Yearly, years)
			if !date.Before(limit) {
				break
			}
			out = append(out, model.Anniversary{
				Title:    fmt.Sprintf("만난지 %d주년", years),
				Date:     date,
				Category: model.CategoryFirstDate,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: rule %s cannot repeat a first date", model.ErrInvalidInput, rule)
}

// Repeat expands a manually created anniversary. None gives the date
// itself; YEAR repeats it every year, starting with the date, before
// horizon + 1 day.
func Repeat(title, content string, date time.Time, rule recurrence.Rule, horizon time.Time) ([]model.Anniversary, error) {
	switch rule {
	case recurrence.None:
		return []model.Anniversary{{
			Title:    title,
			Content:  content,
			Date:     date,
			Category: model.CategoryOther,
		}}, nil

	case recurrence.Yearly:
		limit := horizon.AddDate(0, 0, 1)
		var out []model.Anniversary
		for years := 0; ; years++ {
			d := recurrence.Advance(date, recurrence.Yearly, years)
			if !d.Before(limit) {
				break
			}
			out = append(out, model.Anniversary{
				Title:    title,
				Content:  content,
				Date:     d,
				Category: model.CategoryOther,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: rule %s cannot repeat an anniversary", model.ErrInvalidInput, rule)
}
