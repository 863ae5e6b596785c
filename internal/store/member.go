package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, birthday, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var birthday sql.NullTime
	if err := scanner.Scan(&m.ID, &m.Name, &birthday, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if birthday.Valid {
		b := birthday.Time.UTC()
		m.Birthday = &b
	}
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, name string, birthday *time.Time) (*model.Member, error) {
	var b sql.NullTime
	if birthday != nil {
		b = sql.NullTime{Time: birthday.UTC(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO members (name, birthday) VALUES (?, ?)`, name, b)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// SetBirthday records a birthday for a member that has none yet. It reports
// false when the member already had one (or does not exist).
func (s *MemberStore) SetBirthday(ctx context.Context, id int64, birthday time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE members SET birthday = ? WHERE id = ? AND birthday IS NULL`,
		birthday.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set birthday: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
