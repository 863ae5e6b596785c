package model

import "time"

// Couple links two members. It is immutable once connected.
type Couple struct {
	ID        int64     `json:"id"`
	Member1ID int64     `json:"member1_id"`
	Member2ID int64     `json:"member2_id"`
	FirstDate time.Time `json:"first_date"`
	CreatedAt time.Time `json:"created_at"`
}

// PartnerOf returns the other member of the couple, or 0 if memberID is not
// part of it.
func (c *Couple) PartnerOf(memberID int64) int64 {
	switch memberID {
	case c.Member1ID:
		return c.Member2ID
	case c.Member2ID:
		return c.Member1ID
	}
	return 0
}

func (c *Couple) Has(memberID int64) bool {
	return c.Member1ID == memberID || c.Member2ID == memberID
}
