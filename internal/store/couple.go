package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
)

type CoupleStore struct {
	db *sql.DB
}

func NewCoupleStore(db *sql.DB) *CoupleStore {
	return &CoupleStore{db: db}
}

const coupleCols = `id, member1_id, member2_id, first_date, created_at`

func scanCouple(scanner interface{ Scan(...any) error }) (*model.Couple, error) {
	var c model.Couple
	if err := scanner.Scan(&c.ID, &c.Member1ID, &c.Member2ID, &c.FirstDate, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.FirstDate = c.FirstDate.UTC()
	return &c, nil
}

func (s *CoupleStore) Create(ctx context.Context, member1ID, member2ID int64, firstDate time.Time) (*model.Couple, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO couples (member1_id, member2_id, first_date) VALUES (?, ?, ?)`,
		member1ID, member2ID, firstDate.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert couple: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CoupleStore) GetByID(ctx context.Context, id int64) (*model.Couple, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+coupleCols+` FROM couples WHERE id = ?`, id)
	c, err := scanCouple(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get couple: %w", err)
	}
	return c, nil
}

// GetByMember returns the couple memberID belongs to, or nil if not connected.
func (s *CoupleStore) GetByMember(ctx context.Context, memberID int64) (*model.Couple, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+coupleCols+` FROM couples WHERE member1_id = ? OR member2_id = ?`,
		memberID, memberID,
	)
	c, err := scanCouple(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get couple by member: %w", err)
	}
	return c, nil
}

// PartnerID resolves the partner of memberID. ok is false when the member
// is not connected.
func (s *CoupleStore) PartnerID(ctx context.Context, memberID int64) (partnerID int64, ok bool, err error) {
	c, err := s.GetByMember(ctx, memberID)
	if err != nil {
		return 0, false, err
	}
	if c == nil {
		return 0, false, nil
	}
	return c.PartnerOf(memberID), true, nil
}

// Delete removes the couple together with every anniversary pattern it owns.
func (s *CoupleStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM couples WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete couple: %w", err)
	}
	return nil
}
