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

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleCols = `s.id, s.pattern_id, p.member_id, s.title, s.content, s.location, s.start_time, s.end_time, s.updated_at`

const scheduleFrom = `FROM schedules s JOIN schedule_patterns p ON p.id = s.pattern_id`

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.Schedule, error) {
	var sc model.Schedule
	err := scanner.Scan(&sc.ID, &sc.PatternID, &sc.MemberID, &sc.Title, &sc.Content, &sc.Location,
		&sc.StartTime, &sc.EndTime, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sc.StartTime = sc.StartTime.UTC()
	sc.EndTime = sc.EndTime.UTC()
	return &sc, nil
}

// CreatePattern saves the pattern and bulk-inserts its schedules in one
// transaction, preserving their order. Either everything is stored or
// nothing is.
func (s *ScheduleStore) CreatePattern(ctx context.Context, p model.SchedulePattern, schedules []model.Schedule) (*model.SchedulePattern, []model.Schedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO schedule_patterns (member_id, repeat_rule, repeat_start, repeat_end, rrule)
		 VALUES (?, ?, ?, ?, ?)`,
		p.MemberID, p.RepeatRule.String(), p.RepeatStart.UTC(), p.RepeatEnd.UTC(), p.RRule,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert schedule pattern: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	saved := make([]model.Schedule, len(schedules))
	copy(saved, schedules)
	ids, err := insertRows(ctx, tx, "schedules",
		[]string{"pattern_id", "title", "content", "location", "start_time", "end_time"},
		len(saved),
		func(i int) []any {
			sc := saved[i]
			return []any{p.ID, sc.Title, sc.Content, sc.Location, sc.StartTime.UTC(), sc.EndTime.UTC()}
		},
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit schedule pattern: %w", err)
	}

	for i := range saved {
		saved[i].ID = ids[i]
		saved[i].PatternID = p.ID
		saved[i].MemberID = p.MemberID
	}
	return &p, saved, nil
}

func (s *ScheduleStore) GetByID(ctx context.Context, id int64) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` `+scheduleFrom+` WHERE s.id = ?`, id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

func (s *ScheduleStore) getPattern(ctx context.Context, id int64) (*model.SchedulePattern, error) {
	var p model.SchedulePattern
	var rule string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, repeat_rule, repeat_start, repeat_end, rrule, created_at
		 FROM schedule_patterns WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.MemberID, &rule, &p.RepeatStart, &p.RepeatEnd, &p.RRule, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule pattern: %w", err)
	}
	if p.RepeatRule, err = recurrence.ParseRule(rule); err != nil {
		return nil, fmt.Errorf("schedule pattern %d: %w", id, err)
	}
	p.RepeatStart = p.RepeatStart.UTC()
	p.RepeatEnd = p.RepeatEnd.UTC()
	return &p, nil
}

// ListForMember returns the schedules owned by memberID (through their
// pattern) that overlap [from, to), ordered by start time. A zero bound
// leaves that side open.
func (s *ScheduleStore) ListForMember(ctx context.Context, memberID int64, from, to time.Time) ([]model.Schedule, error) {
	where := []string{"p.member_id = ?"}
	args := []any{memberID}
	if !to.IsZero() {
		where = append(where, "s.start_time < ?")
		args = append(args, to.UTC())
	}
	if !from.IsZero() {
		where = append(where, "s.end_time >= ?")
		args = append(args, from.UTC())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` `+scheduleFrom+`
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY s.start_time ASC, s.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

func (s *ScheduleStore) CountByPattern(ctx context.Context, patternID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE pattern_id = ?`, patternID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count schedules: %w", err)
	}
	return n, nil
}

// Update edits one materialized schedule. The rest of its series is left
// untouched.
func (s *ScheduleStore) Update(ctx context.Context, id int64, title, content, location string, startTime, endTime time.Time) (*model.Schedule, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules
		 SET title = ?, content = ?, location = ?, start_time = ?, end_time = ?
		 WHERE id = ?`,
		title, content, location, startTime.UTC(), endTime.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ScheduleStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// DeletePattern removes a pattern and, by cascade, every schedule it owns.
func (s *ScheduleStore) DeletePattern(ctx context.Context, patternID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedule_patterns WHERE id = ?`, patternID); err != nil {
		return fmt.Errorf("delete schedule pattern: %w", err)
	}
	return nil
}
