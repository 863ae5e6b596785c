package model

import "time"

type Member struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Birthday  *time.Time `json:"birthday"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
