package model

import (
	"time"

	"github.com/dukerupert/dateplan/internal/recurrence"
)

// SchedulePattern owns every Schedule materialized from one repeat definition.
type SchedulePattern struct {
	ID          int64           `json:"id"`
	MemberID    int64           `json:"member_id"`
	RepeatRule  recurrence.Rule `json:"repeat_rule"`
	RepeatStart time.Time       `json:"repeat_start"`
	RepeatEnd   time.Time       `json:"repeat_end"`
	RRule       string          `json:"rrule,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Schedule struct {
	ID        int64     `json:"id"`
	PatternID int64     `json:"pattern_id"`
	MemberID  int64     `json:"member_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSchedule builds a schedule occurrence, rejecting end before start.
func NewSchedule(title, content, location string, start, end time.Time) (Schedule, error) {
	if end.Before(start) {
		return Schedule{}, ErrInvalidRange
	}
	return Schedule{
		Title:     title,
		Content:   content,
		Location:  location,
		StartTime: start,
		EndTime:   end,
	}, nil
}
