package model

import "time"

// Dating is a single schedule owned by a couple rather than a member.
type Dating struct {
	ID        int64     `json:"id"`
	CoupleID  int64     `json:"couple_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	Content   string    `json:"content"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
