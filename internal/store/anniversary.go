package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

type AnniversaryStore struct {
	db *sql.DB
}

func NewAnniversaryStore(db *sql.DB) *AnniversaryStore {
	return &AnniversaryStore{db: db}
}

const anniversaryCols = `a.id, a.pattern_id, p.couple_id, a.title, a.content, a.date, a.category`

func scanAnniversary(scanner interface{ Scan(...any) error }) (*model.Anniversary, error) {
	var a model.Anniversary
	var category string
	if err := scanner.Scan(&a.ID, &a.PatternID, &a.CoupleID, &a.Title, &a.Content, &a.Date, &category); err != nil {
		return nil, err
	}
	a.Date = a.Date.UTC()
	a.Category = model.AnniversaryCategory(category)
	return &a, nil
}

// CreatePattern saves the pattern and bulk-inserts its anniversaries in one
// transaction. Either everything is stored or nothing is. The returned
// values carry the assigned ids.
func (s *AnniversaryStore) CreatePattern(ctx context.Context, p model.AnniversaryPattern, anniversaries []model.Anniversary) (*model.AnniversaryPattern, []model.Anniversary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var memberID sql.NullInt64
	if p.MemberID != nil {
		memberID = sql.NullInt64{Int64: *p.MemberID, Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO anniversary_patterns (couple_id, member_id, category, repeat_rule, anchor_date)
		 VALUES (?, ?, ?, ?, ?)`,
		p.CoupleID, memberID, string(p.Category), p.RepeatRule.String(), p.AnchorDate.UTC(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert anniversary pattern: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	saved := make([]model.Anniversary, len(anniversaries))
	copy(saved, anniversaries)
	ids, err := insertRows(ctx, tx, "anniversaries",
		[]string{"pattern_id", "title", "content", "date", "category"},
		len(saved),
		func(i int) []any {
			a := saved[i]
			return []any{p.ID, a.Title, a.Content, a.Date.UTC(), string(p.Category)}
		},
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit anniversary pattern: %w", err)
	}

	for i := range saved {
		saved[i].ID = ids[i]
		saved[i].PatternID = p.ID
		saved[i].CoupleID = p.CoupleID
		saved[i].Category = p.Category
	}
	return &p, saved, nil
}

// HasBirthdayPattern reports whether memberID's birthday has already been
// materialized for the couple.
func (s *AnniversaryStore) HasBirthdayPattern(ctx context.Context, coupleID, memberID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anniversary_patterns WHERE couple_id = ? AND member_id = ? AND category = ?`,
		coupleID, memberID, string(model.CategoryBirth),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count birthday patterns: %w", err)
	}
	return n > 0, nil
}

func (s *AnniversaryStore) getPattern(ctx context.Context, id int64) (*model.AnniversaryPattern, error) {
	var p model.AnniversaryPattern
	var memberID sql.NullInt64
	var category, rule string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, couple_id, member_id, category, repeat_rule, anchor_date, created_at
		 FROM anniversary_patterns WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.CoupleID, &memberID, &category, &rule, &p.AnchorDate, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get anniversary pattern: %w", err)
	}
	if memberID.Valid {
		p.MemberID = &memberID.Int64
	}
	p.Category = model.AnniversaryCategory(category)
	if p.RepeatRule, err = recurrence.ParseRule(rule); err != nil {
		return nil, fmt.Errorf("anniversary pattern %d: %w", id, err)
	}
	p.AnchorDate = p.AnchorDate.UTC()
	return &p, nil
}

// ListByCouple returns the couple's anniversaries dated in [from, to),
// ordered by date. A zero bound leaves that side open.
func (s *AnniversaryStore) ListByCouple(ctx context.Context, coupleID int64, from, to time.Time) ([]model.Anniversary, error) {
	where := []string{"p.couple_id = ?"}
	args := []any{coupleID}
	if !from.IsZero() {
		where = append(where, "a.date >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		where = append(where, "a.date < ?")
		args = append(args, to.UTC())
	}

	return s.list(ctx,
		`SELECT `+anniversaryCols+`
		 FROM anniversaries a JOIN anniversary_patterns p ON p.id = a.pattern_id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY a.date ASC, a.id ASC`,
		args...,
	)
}

// ListComing returns up to limit anniversaries of the couple on or after from.
func (s *AnniversaryStore) ListComing(ctx context.Context, coupleID int64, from time.Time, limit int) ([]model.Anniversary, error) {
	return s.list(ctx,
		`SELECT `+anniversaryCols+`
		 FROM anniversaries a JOIN anniversary_patterns p ON p.id = a.pattern_id
		 WHERE p.couple_id = ? AND a.date >= ?
		 ORDER BY a.date ASC, a.id ASC
		 LIMIT ?`,
		coupleID, from.UTC(), limit,
	)
}

// ListBetween returns anniversaries of every couple dated in [from, to).
func (s *AnniversaryStore) ListBetween(ctx context.Context, from, to time.Time) ([]model.Anniversary, error) {
	return s.list(ctx,
		`SELECT `+anniversaryCols+`
		 FROM anniversaries a JOIN anniversary_patterns p ON p.id = a.pattern_id
		 WHERE a.date >= ? AND a.date < ?
		 ORDER BY p.couple_id ASC, a.date ASC, a.id ASC`,
		from.UTC(), to.UTC(),
	)
}

func (s *AnniversaryStore) countByPattern(ctx context.Context, patternID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anniversaries WHERE pattern_id = ?`, patternID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count anniversaries: %w", err)
	}
	return n, nil
}

func (s *AnniversaryStore) list(ctx context.Context, query string, args ...any) ([]model.Anniversary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anniversaries: %w", err)
	}
	defer rows.Close()

	var anniversaries []model.Anniversary
	for rows.Next() {
		a, err := scanAnniversary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anniversary: %w", err)
		}
		anniversaries = append(anniversaries, *a)
	}
	return anniversaries, rows.Err()
}
