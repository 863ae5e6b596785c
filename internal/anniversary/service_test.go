package anniversary

import (
	"context"
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
	svc     *Service
	store   *store.AnniversaryStore
	members *store.MemberStore
	couples *store.CoupleStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	f := &fixture{
		store:   store.NewAnniversaryStore(db),
		members: store.NewMemberStore(db),
		couples: store.NewCoupleStore(db),
	}
	f.svc = NewService(f.store, f.couples, Options{
		Horizon:  horizon,
		Location: seoul,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, seoul) },
	})
	return f
}

// countByPattern counts the couple's stored anniversaries per pattern.
func (f *fixture) countByPattern(t *testing.T, coupleID int64) map[int64]int {
	t.Helper()
	all, err := f.store.ListByCouple(context.Background(), coupleID, time.Time{}, time.Time{})
	require.NoError(t, err)
	counts := make(map[int64]int)
	for _, a := range all {
		counts[a.PatternID]++
	}
	return counts
}

func (f *fixture) couple(t *testing.T) (*model.Member, *model.Member, *model.Couple) {
	t.Helper()
	ctx := context.Background()
	birth := recurrence.Date(2000, 10, 10)
	a, err := f.members.Create(ctx, "민지", &birth)
	require.NoError(t, err)
	b, err := f.members.Create(ctx, "현우", nil)
	require.NoError(t, err)
	c, err := f.couples.Create(ctx, a.ID, b.ID, recurrence.Date(2020, 1, 10))
	require.NoError(t, err)
	return a, b, c
}

func TestCreateForFirstDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, _, c := f.couple(t)

	patterns, err := f.svc.CreateForFirstDate(ctx, c)
	require.NoError(t, err)
	require.Len(t, patterns, 3)

	wantCounts := map[recurrence.Rule]int{
		recurrence.None:        1,
		recurrence.HundredDays: 109,
		recurrence.Yearly:      29,
	}
	counts := f.countByPattern(t, c.ID)
	for _, p := range patterns {
		assert.Equal(t, model.CategoryFirstDate, p.Category)
		assert.Equal(t, wantCounts[p.RepeatRule], counts[p.ID], "rule %v", p.RepeatRule)
	}
}

func TestCreateForBirthdayOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, _, c := f.couple(t)

	p, err := f.svc.CreateForBirthday(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.MemberID)
	assert.Equal(t, a.ID, *p.MemberID)

	assert.Equal(t, 50, f.countByPattern(t, c.ID)[p.ID])

	again, err := f.svc.CreateForBirthday(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, again)

	all, err := f.store.ListByCouple(ctx, c.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestCreateForBirthdayRequiresCouple(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	birth := recurrence.Date(1999, 3, 1)
	m, err := f.members.Create(ctx, "solo", &birth)
	require.NoError(t, err)

	_, err = f.svc.CreateForBirthday(ctx, m)
	assert.ErrorIs(t, err, model.ErrNotConnected)

	noBirthday, err := f.members.Create(ctx, "x", nil)
	require.NoError(t, err)
	_, err = f.svc.CreateForBirthday(ctx, noBirthday)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCreateManual(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b, c := f.couple(t)

	p, saved, err := f.svc.Create(ctx, b.ID, c.ID, Input{
		Title: "첫 여행",
		Date:  recurrence.Date(2023, 5, 5),
		Rule:  recurrence.Yearly,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, p.Category)
	require.Len(t, saved, 27)
	assert.NotZero(t, saved[0].ID)

	tests := []struct {
		name string
		in   Input
	}{
		{"short title", Input{Title: "x", Date: recurrence.Date(2023, 5, 5)}},
		{"long title", Input{Title: "가나다라마바사아자차카타파하거너", Date: recurrence.Date(2023, 5, 5)}},
		{"no date", Input{Title: "여행"}},
		{"past horizon", Input{Title: "여행", Date: recurrence.Date(2050, 1, 1)}},
		{"schedule rule", Input{Title: "여행", Date: recurrence.Date(2023, 5, 5), Rule: recurrence.Monthly}},
		{"hundred days", Input{Title: "여행", Date: recurrence.Date(2023, 5, 5), Rule: recurrence.HundredDays}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Create(ctx, a.ID, c.ID, tt.in)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestCreateManualPermission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, _, c := f.couple(t)

	other1, err := f.members.Create(ctx, "o1", nil)
	require.NoError(t, err)
	other2, err := f.members.Create(ctx, "o2", nil)
	require.NoError(t, err)
	loner, err := f.members.Create(ctx, "loner", nil)
	require.NoError(t, err)
	_, err = f.couples.Create(ctx, other1.ID, other2.ID, recurrence.Date(2021, 1, 1))
	require.NoError(t, err)

	in := Input{Title: "기념일", Date: recurrence.Date(2023, 1, 1)}

	_, _, err = f.svc.Create(ctx, other1.ID, c.ID, in)
	assert.ErrorIs(t, err, model.ErrNoPermission)

	_, _, err = f.svc.Create(ctx, loner.ID, c.ID, in)
	assert.ErrorIs(t, err, model.ErrNotConnected)
}

func TestComing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, _, c := f.couple(t)
	_, err := f.svc.CreateForFirstDate(ctx, c)
	require.NoError(t, err)

	got, err := f.svc.Coming(ctx, a.ID, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultComingSize)
	assert.Equal(t, "만난지 1600일", got[0].Title)
	assert.Equal(t, recurrence.Date(2024, 5, 27), got[0].Date)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Date.Before(got[i-1].Date))
	}

	five, err := f.svc.Coming(ctx, a.ID, c.ID, 5)
	require.NoError(t, err)
	assert.Len(t, five, 5)
}

func TestReadDates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b, c := f.couple(t)
	_, err := f.svc.CreateForFirstDate(ctx, c)
	require.NoError(t, err)

	year, month := 2021, 1
	got, err := f.svc.ReadDates(ctx, a.ID, c.ID, calendar.NewFilter(&year, &month))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{recurrence.Date(2021, 1, 10)}, got)

	// Both partners see the same dates.
	fromPartner, err := f.svc.ReadDates(ctx, b.ID, c.ID, calendar.NewFilter(&year, &month))
	require.NoError(t, err)
	assert.Equal(t, got, fromPartner)

	// January across every year: one yearly anniversary per year plus the
	// first-met day, and any hundredth day that lands in January.
	monthOnly, err := f.svc.ReadDates(ctx, a.ID, c.ID, calendar.NewFilter(nil, &month))
	require.NoError(t, err)
	assert.Contains(t, monthOnly, recurrence.Date(2020, 1, 10))
	assert.Contains(t, monthOnly, recurrence.Date(2049, 1, 10))
	for _, d := range monthOnly {
		assert.Equal(t, time.January, d.Month())
	}

	bad := 13
	_, err = f.svc.ReadDates(ctx, a.ID, c.ID, calendar.NewFilter(nil, &bad))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestListByDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, _, c := f.couple(t)
	_, err := f.svc.CreateForFirstDate(ctx, c)
	require.NoError(t, err)

	got, err := f.svc.ListByDate(ctx, a.ID, c.ID, recurrence.Date(2020, 4, 18))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "만난지 100일", got[0].Title)

	none, err := f.svc.ListByDate(ctx, a.ID, c.ID, recurrence.Date(2020, 4, 19))
	require.NoError(t, err)
	assert.Empty(t, none)
}
