package schedule

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/dateplan/internal/calendar"
	"github.com/dukerupert/dateplan/internal/database"
	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
	"github.com/dukerupert/dateplan/internal/store"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	store   *store.ScheduleStore
	members *store.MemberStore
	couples *store.CoupleStore
	loc     *time.Location
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	f := &fixture{
		db:      db,
		store:   store.NewScheduleStore(db),
		members: store.NewMemberStore(db),
		couples: store.NewCoupleStore(db),
		loc:     seoul,
	}
	f.svc = NewService(f.store, store.NewDatingStore(db), f.couples, Options{
		Horizon:  horizon,
		Location: seoul,
	})
	return f
}

func (f *fixture) member(t *testing.T, name string) *model.Member {
	t.Helper()
	m, err := f.members.Create(context.Background(), name, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) connect(t *testing.T, a, b *model.Member) *model.Couple {
	t.Helper()
	c, err := f.couples.Create(context.Background(), a.ID, b.ID, recurrence.Date(2020, 1, 10))
	require.NoError(t, err)
	return c
}

func ym(year, month int) calendar.Filter {
	return calendar.NewFilter(&year, &month)
}

func TestCreateStoresPatternAndRecords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "민지")

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)
	p, saved, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details:   Details{Title: "운동", Location: "헬스장", Start: start, End: start.Add(time.Hour)},
		Rule:      recurrence.Daily,
		RepeatEnd: datePtr(2024, 1, 3),
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	assert.Equal(t, recurrence.Date(2024, 1, 1), p.RepeatStart)
	assert.Equal(t, recurrence.Date(2024, 1, 3), p.RepeatEnd)
	assert.Contains(t, p.RRule, "FREQ=DAILY")

	n, err := f.store.CountByPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, sc := range saved {
		assert.Equal(t, m.ID, sc.MemberID)
		assert.Equal(t, p.ID, sc.PatternID)
		assert.NotZero(t, sc.ID)
	}
}

func TestCreateOwnerOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "a")
	b := f.member(t, "b")
	f.connect(t, a, b)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)
	_, _, err := f.svc.Create(ctx, a.ID, b.ID, Definition{
		Details: Details{Title: "x", Start: start, End: start},
	})
	assert.ErrorIs(t, err, model.ErrNoPermission)
}

func TestCreateRejectsBeforePersisting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "m")
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)

	_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "x", Start: start, End: start.Add(-time.Hour)},
	})
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	_, _, err = f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "x", Start: start, End: start},
		Rule:    recurrence.Weekly,
	})
	assert.ErrorIs(t, err, ErrRepeatEndRequired)

	_, _, err = f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "이 제목은 열다섯 글자를 넘기는 제목", Start: start, End: start},
	})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	all, err := f.svc.ListAll(ctx, m.ID, m.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReadScheduleSpanningMonths(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "m")

	_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{
			Title: "여행",
			Start: time.Date(2024, 3, 30, 23, 0, 0, 0, f.loc),
			End:   time.Date(2024, 4, 1, 1, 0, 0, 0, f.loc),
		},
	})
	require.NoError(t, err)

	march, err := f.svc.ReadSchedule(ctx, m.ID, m.ID, ym(2024, 3))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2024, 3, 30), recurrence.Date(2024, 3, 31)}, march)

	april, err := f.svc.ReadSchedule(ctx, m.ID, m.ID, ym(2024, 4))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2024, 4, 1)}, april)

	all, err := f.svc.ReadSchedule(ctx, m.ID, m.ID, calendar.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReadScheduleMonthOnlyAcrossYears(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "m")

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, f.loc)
	_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details:   Details{Title: "정기 점검", Start: start, End: start.Add(time.Hour)},
		Rule:      recurrence.Yearly,
		RepeatEnd: datePtr(2026, 12, 31),
	})
	require.NoError(t, err)

	january := 1
	got, err := f.svc.ReadSchedule(ctx, m.ID, m.ID, calendar.NewFilter(nil, &january))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		recurrence.Date(2024, 1, 15),
		recurrence.Date(2025, 1, 15),
		recurrence.Date(2026, 1, 15),
	}, got)

	year := 2025
	got, err = f.svc.ReadSchedule(ctx, m.ID, m.ID, calendar.NewFilter(&year, nil))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2025, 1, 15)}, got)
}

func TestReadScheduleUsesLocalDates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "m")

	// 2024-05-31 16:00 UTC is already June 1st in Seoul.
	start := time.Date(2024, 5, 31, 16, 0, 0, 0, time.UTC)
	_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "아침", Start: start, End: start.Add(time.Hour)},
	})
	require.NoError(t, err)

	got, err := f.svc.ReadSchedule(ctx, m.ID, m.ID, ym(2024, 6))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2024, 6, 1)}, got)
}

func TestReadSchedulePermission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "a")
	b := f.member(t, "b")
	x := f.member(t, "x")
	y := f.member(t, "y")
	f.connect(t, a, b)

	start := time.Date(2024, 2, 1, 9, 0, 0, 0, f.loc)
	for _, m := range []*model.Member{a, b, y} {
		_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
			Details: Details{Title: "t", Start: start, End: start.Add(time.Hour)},
		})
		require.NoError(t, err)
	}

	// Partners can read each other.
	ab, err := f.svc.ReadSchedule(ctx, b.ID, a.ID, ym(2024, 2))
	require.NoError(t, err)
	ba, err := f.svc.ReadSchedule(ctx, a.ID, b.ID, ym(2024, 2))
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	// Unconnected members cannot read anyone else.
	_, err = f.svc.ReadSchedule(ctx, y.ID, x.ID, ym(2024, 2))
	assert.ErrorIs(t, err, model.ErrNoPermission)

	// A connected member cannot read a stranger.
	_, err = f.svc.ReadSchedule(ctx, y.ID, a.ID, ym(2024, 2))
	assert.ErrorIs(t, err, model.ErrNoPermission)

	_, err = f.svc.ListByDate(ctx, x.ID, a.ID, start)
	assert.ErrorIs(t, err, model.ErrNoPermission)
}

func TestListByDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "m")

	_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{
			Title: "여행",
			Start: time.Date(2024, 3, 30, 23, 0, 0, 0, f.loc),
			End:   time.Date(2024, 4, 1, 1, 0, 0, 0, f.loc),
		},
	})
	require.NoError(t, err)

	for _, day := range []int{30, 31} {
		got, err := f.svc.ListByDate(ctx, m.ID, m.ID, recurrence.Date(2024, 3, day))
		require.NoError(t, err)
		assert.Len(t, got, 1, "march %d", day)
	}
	got, err := f.svc.ListByDate(ctx, m.ID, m.ID, recurrence.Date(2024, 4, 2))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "a")
	b := f.member(t, "b")
	f.connect(t, a, b)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)
	p, saved, err := f.svc.Create(ctx, a.ID, a.ID, Definition{
		Details:   Details{Title: "운동", Start: start, End: start.Add(time.Hour)},
		Rule:      recurrence.Weekly,
		RepeatEnd: datePtr(2024, 1, 31),
	})
	require.NoError(t, err)
	require.Len(t, saved, 5)

	moved := Details{Title: "수영", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)}
	updated, err := f.svc.Update(ctx, a.ID, a.ID, saved[0].ID, moved)
	require.NoError(t, err)
	assert.Equal(t, "수영", updated.Title)
	assert.True(t, updated.StartTime.Equal(moved.Start))

	second, err := f.store.GetByID(ctx, saved[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "운동", second.Title)

	_, err = f.svc.Update(ctx, b.ID, a.ID, saved[0].ID, moved)
	assert.ErrorIs(t, err, model.ErrNoPermission)

	_, err = f.svc.Update(ctx, a.ID, a.ID, saved[0].ID, Details{Title: "x", Start: start, End: start.Add(-time.Hour)})
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	_, err = f.svc.Update(ctx, a.ID, a.ID, 9999, moved)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, a.ID, a.ID, saved[0].ID, false))
	n, err := f.store.CountByPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, f.svc.Delete(ctx, a.ID, a.ID, saved[1].ID, true))
	n, err = f.store.CountByPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = f.svc.Delete(ctx, a.ID, a.ID, saved[2].ID, false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDatings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "a")
	b := f.member(t, "b")
	loner := f.member(t, "loner")
	c := f.connect(t, a, b)

	d, err := f.svc.CreateDating(ctx, a.ID, c.ID, Details{
		Title:    "한강 피크닉",
		Location: "여의도",
		Start:    time.Date(2024, 6, 1, 18, 0, 0, 0, f.loc),
		End:      time.Date(2024, 6, 2, 1, 0, 0, 0, f.loc),
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, d.CoupleID)

	dates, err := f.svc.ReadDatingDates(ctx, b.ID, c.ID, ym(2024, 6))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2024, 6, 1), recurrence.Date(2024, 6, 2)}, dates)

	_, err = f.svc.CreateDating(ctx, loner.ID, c.ID, Details{Title: "x", Start: d.StartTime, End: d.EndTime})
	assert.ErrorIs(t, err, model.ErrNotConnected)

	updated, err := f.svc.UpdateDating(ctx, b.ID, c.ID, d.ID, Details{
		Title: "영화",
		Start: time.Date(2024, 6, 3, 19, 0, 0, 0, f.loc),
		End:   time.Date(2024, 6, 3, 21, 0, 0, 0, f.loc),
	})
	require.NoError(t, err)
	assert.Equal(t, "영화", updated.Title)

	require.NoError(t, f.svc.DeleteDating(ctx, a.ID, c.ID, d.ID))
	err = f.svc.DeleteDating(ctx, a.ID, c.ID, d.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteLastScheduleRemovesPattern(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "민지")

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)
	p, saved, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "병원", Start: start, End: start.Add(time.Hour)},
		Rule:    recurrence.None,
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, f.svc.Delete(ctx, m.ID, m.ID, saved[0].ID, false))

	var patterns int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM schedule_patterns WHERE id = ?`, p.ID).Scan(&patterns))
	assert.Zero(t, patterns)
}

func TestCreateRejectsStartPastHorizon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "민지")

	start := time.Date(2060, 5, 1, 9, 0, 0, 0, f.loc)
	for _, rule := range []recurrence.Rule{recurrence.None, recurrence.Daily} {
		_, _, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
			Details:   Details{Title: "운동", Start: start, End: start.Add(time.Hour)},
			Rule:      rule,
			RepeatEnd: datePtr(2061, 1, 1),
		})
		assert.ErrorIs(t, err, ErrPastHorizon, "rule %v", rule)
	}

	var patterns int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM schedule_patterns`).Scan(&patterns))
	assert.Zero(t, patterns)
}

func TestUpdateRejectsOverlongSpan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.member(t, "민지")

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, f.loc)
	_, saved, err := f.svc.Create(ctx, m.ID, m.ID, Definition{
		Details: Details{Title: "운동", Start: start, End: start.Add(time.Hour)},
		Rule:    recurrence.None,
	})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, m.ID, m.ID, saved[0].ID, Details{
		Title: "운동",
		Start: time.Date(2, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrSpanTooLong)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.svc.Update(ctx, m.ID, m.ID, saved[0].ID, Details{
		Title: "운동",
		Start: time.Date(2055, 1, 1, 9, 0, 0, 0, f.loc),
		End:   time.Date(2055, 1, 1, 10, 0, 0, 0, f.loc),
	})
	assert.ErrorIs(t, err, ErrPastHorizon)

	// A full year is still fine.
	_, err = f.svc.Update(ctx, m.ID, m.ID, saved[0].ID, Details{Title: "안식년", Start: start, End: start.AddDate(1, 0, 0)})
	assert.NoError(t, err)
}
