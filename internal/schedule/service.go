package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/dateplan/internal/calendar"
	"github.com/dukerupert/dateplan/internal/metrics"
	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

type Store interface {
	CreatePattern(ctx context.Context, p model.SchedulePattern, schedules []model.Schedule) (*model.SchedulePattern, []model.Schedule, error)
	GetByID(ctx context.Context, id int64) (*model.Schedule, error)
	ListForMember(ctx context.Context, memberID int64, from, to time.Time) ([]model.Schedule, error)
	Update(ctx context.Context, id int64, title, content, location string, startTime, endTime time.Time) (*model.Schedule, error)
	Delete(ctx context.Context, id int64) error
	DeletePattern(ctx context.Context, patternID int64) error
	CountByPattern(ctx context.Context, patternID int64) (int, error)
}

type DatingStore interface {
	Create(ctx context.Context, coupleID int64, title, location, content string, startTime, endTime time.Time) (*model.Dating, error)
	GetByID(ctx context.Context, id int64) (*model.Dating, error)
	ListForCouple(ctx context.Context, coupleID int64, from, to time.Time) ([]model.Dating, error)
	Update(ctx context.Context, id int64, title, location, content string, startTime, endTime time.Time) (*model.Dating, error)
	Delete(ctx context.Context, id int64) error
}

// Couples resolves partners and couple membership.
type Couples interface {
	GetByMember(ctx context.Context, memberID int64) (*model.Couple, error)
	PartnerID(ctx context.Context, memberID int64) (int64, bool, error)
}

type Options struct {
	Horizon  time.Time
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

type Service struct {
	store   Store
	datings DatingStore
	couples Couples
	horizon time.Time
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, datings DatingStore, couples Couples, opts Options) *Service {
	s := &Service{
		store:   store,
		datings: datings,
		couples: couples,
		horizon: recurrence.DateOf(opts.Horizon),
		loc:     opts.Location,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "schedule")
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Create materializes def for memberID. Only the owner may create
// schedules on their own calendar.
func (s *Service) Create(ctx context.Context, requesterID, memberID int64, def Definition) (*model.SchedulePattern, []model.Schedule, error) {
	if requesterID != memberID {
		return nil, nil, model.ErrNoPermission
	}
	if err := def.validate(s.horizon); err != nil {
		return nil, nil, err
	}

	def.Start = def.Start.In(s.loc)
	def.End = def.End.In(s.loc)
	until, err := def.Until(s.horizon)
	if err != nil {
		return nil, nil, err
	}
	schedules, err := Expand(def, s.horizon)
	if err != nil {
		return nil, nil, err
	}

	lastInstant := time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, s.loc)
	text, err := def.Rule.RRule(def.Start, lastInstant)
	if err != nil {
		return nil, nil, fmt.Errorf("render rrule: %w", err)
	}

	p, saved, err := s.store.CreatePattern(ctx, model.SchedulePattern{
		MemberID:    memberID,
		RepeatRule:  def.Rule,
		RepeatStart: recurrence.DateOf(def.Start),
		RepeatEnd:   until,
		RRule:       text,
	}, schedules)
	s.metrics.Materialized("schedule", def.Rule.ScheduleCode(), len(saved), err)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("schedule pattern materialized",
		"member_id", memberID,
		"pattern_id", p.ID,
		"rule", def.Rule,
		"records", len(saved),
	)
	return p, saved, nil
}

// ReadSchedule returns the distinct calendar dates, in the service location,
// on which targetID has at least one schedule passing f. The requester may
// read their own calendar or their partner's.
func (s *Service) ReadSchedule(ctx context.Context, targetID, requesterID int64, f calendar.Filter) (dates []time.Time, err error) {
	defer func() { s.metrics.Query("schedule", err) }()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if err := s.canRead(ctx, targetID, requesterID); err != nil {
		return nil, err
	}

	from, to := f.Window(s.loc)
	schedules, err := s.store.ListForMember(ctx, targetID, from, to)
	if err != nil {
		return nil, err
	}

	spans := make([]calendar.Span, len(schedules))
	for i, sc := range schedules {
		spans[i] = calendar.Span{Start: sc.StartTime, End: sc.EndTime}
	}
	return calendar.Collect(spans, f, s.loc), nil
}

// ListByDate returns targetID's schedules touching the given calendar date.
func (s *Service) ListByDate(ctx context.Context, requesterID, targetID int64, date time.Time) ([]model.Schedule, error) {
	if err := s.canRead(ctx, targetID, requesterID); err != nil {
		return nil, err
	}
	from, to := calendar.DayWindow(date, s.loc)
	return s.store.ListForMember(ctx, targetID, from, to)
}

// ListAll returns every schedule of targetID.
func (s *Service) ListAll(ctx context.Context, requesterID, targetID int64) ([]model.Schedule, error) {
	if err := s.canRead(ctx, targetID, requesterID); err != nil {
		return nil, err
	}
	return s.store.ListForMember(ctx, targetID, time.Time{}, time.Time{})
}

// Update edits one materialized schedule without touching the rest of its
// series.
func (s *Service) Update(ctx context.Context, requesterID, memberID, scheduleID int64, d Details) (*model.Schedule, error) {
	if err := d.validate(s.horizon); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, requesterID, memberID, scheduleID); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, scheduleID, d.Title, d.Content, d.Location, d.Start, d.End)
}

// Delete removes one schedule, or its whole series when deleteRepeat is set.
// A pattern left without schedules is removed as well.
func (s *Service) Delete(ctx context.Context, requesterID, memberID, scheduleID int64, deleteRepeat bool) error {
	sc, err := s.owned(ctx, requesterID, memberID, scheduleID)
	if err != nil {
		return err
	}
	if deleteRepeat {
		if err := s.store.DeletePattern(ctx, sc.PatternID); err != nil {
			return err
		}
		s.logger.Info("schedule series deleted", "member_id", memberID, "pattern_id", sc.PatternID)
		return nil
	}
	if err := s.store.Delete(ctx, scheduleID); err != nil {
		return err
	}

	// The last schedule of a series takes its pattern with it.
	n, err := s.store.CountByPattern(ctx, sc.PatternID)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.store.DeletePattern(ctx, sc.PatternID)
	}
	return nil
}

func (s *Service) canRead(ctx context.Context, targetID, requesterID int64) error {
	if targetID == requesterID {
		return nil
	}
	partnerID, ok, err := s.couples.PartnerID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !ok || partnerID != targetID {
		return model.ErrNoPermission
	}
	return nil
}

func (s *Service) owned(ctx context.Context, requesterID, memberID, scheduleID int64) (*model.Schedule, error) {
	if requesterID != memberID {
		return nil, model.ErrNoPermission
	}
	sc, err := s.store.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sc == nil || sc.MemberID != memberID {
		return nil, model.ErrNotFound
	}
	return sc, nil
}
