package model

import (
	"time"

	"github.com/dukerupert/dateplan/internal/recurrence"
)

type AnniversaryCategory string

const (
	CategoryBirth     AnniversaryCategory = "BIRTH"
	CategoryFirstDate AnniversaryCategory = "FIRST_DATE"
	CategoryOther     AnniversaryCategory = "OTHER"
)

// AnniversaryPattern owns every Anniversary materialized from it. MemberID is
// set for birthday patterns only.
type AnniversaryPattern struct {
	ID         int64               `json:"id"`
	CoupleID   int64               `json:"couple_id"`
	MemberID   *int64              `json:"member_id,omitempty"`
	Category   AnniversaryCategory `json:"category"`
	RepeatRule recurrence.Rule     `json:"repeat_rule"`
	AnchorDate time.Time           `json:"anchor_date"`
	CreatedAt  time.Time           `json:"created_at"`
}

type Anniversary struct {
	ID        int64               `json:"id"`
	PatternID int64               `json:"pattern_id"`
	CoupleID  int64               `json:"couple_id"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Date      time.Time           `json:"date"`
	Category  AnniversaryCategory `json:"category"`
}
