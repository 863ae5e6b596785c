package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
)

type DatingStore struct {
	db *sql.DB
}

func NewDatingStore(db *sql.DB) *DatingStore {
	return &DatingStore{db: db}
}

const datingCols = `id, couple_id, title, location, content, start_time, end_time, created_at, updated_at`

func scanDating(scanner interface{ Scan(...any) error }) (*model.Dating, error) {
	var d model.Dating
	err := scanner.Scan(&d.ID, &d.CoupleID, &d.Title, &d.Location, &d.Content,
		&d.StartTime, &d.EndTime, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.StartTime = d.StartTime.UTC()
	d.EndTime = d.EndTime.UTC()
	return &d, nil
}

func (s *DatingStore) Create(ctx context.Context, coupleID int64, title, location, content string, startTime, endTime time.Time) (*model.Dating, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO datings (couple_id, title, location, content, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		coupleID, title, location, content, startTime.UTC(), endTime.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert dating: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *DatingStore) GetByID(ctx context.Context, id int64) (*model.Dating, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datingCols+` FROM datings WHERE id = ?`, id)
	d, err := scanDating(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dating: %w", err)
	}
	return d, nil
}

// ListForCouple returns the couple's datings overlapping [from, to). A zero
// bound leaves that side open.
func (s *DatingStore) ListForCouple(ctx context.Context, coupleID int64, from, to time.Time) ([]model.Dating, error) {
	where := []string{"couple_id = ?"}
	args := []any{coupleID}
	if !to.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, to.UTC())
	}
	if !from.IsZero() {
		where = append(where, "end_time >= ?")
		args = append(args, from.UTC())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+datingCols+` FROM datings WHERE `+strings.Join(where, " AND ")+` ORDER BY start_time ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query datings: %w", err)
	}
	defer rows.Close()

	var datings []model.Dating
	for rows.Next() {
		d, err := scanDating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dating: %w", err)
		}
		datings = append(datings, *d)
	}
	return datings, rows.Err()
}

func (s *DatingStore) Update(ctx context.Context, id int64, title, location, content string, startTime, endTime time.Time) (*model.Dating, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE datings SET title = ?, location = ?, content = ?, start_time = ?, end_time = ? WHERE id = ?`,
		title, location, content, startTime.UTC(), endTime.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update dating: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *DatingStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM datings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dating: %w", err)
	}
	return nil
}
