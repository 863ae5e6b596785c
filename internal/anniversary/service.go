package anniversary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/dateplan/internal/calendar"
	"github.com/dukerupert/dateplan/internal/metrics"
	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

const (
	DefaultComingSize = 3
	MaxComingSize     = 50

	minTitleLen   = 2
	maxTitleLen   = 15
	maxContentLen = 100
)

type Store interface {
	CreatePattern(ctx context.Context, p model.AnniversaryPattern, anniversaries []model.Anniversary) (*model.AnniversaryPattern, []model.Anniversary, error)
	HasBirthdayPattern(ctx context.Context, coupleID, memberID int64) (bool, error)
	ListByCouple(ctx context.Context, coupleID int64, from, to time.Time) ([]model.Anniversary, error)
	ListComing(ctx context.Context, coupleID int64, from time.Time, limit int) ([]model.Anniversary, error)
}

type Couples interface {
	GetByID(ctx context.Context, id int64) (*model.Couple, error)
	GetByMember(ctx context.Context, memberID int64) (*model.Couple, error)
}

type Options struct {
	Horizon  time.Time
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

type Service struct {
	store   Store
	couples Couples
	horizon time.Time
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, couples Couples, opts Options) *Service {
	s := &Service{
		store:   store,
		couples: couples,
		horizon: recurrence.DateOf(opts.Horizon),
		loc:     opts.Location,
		now:     opts.Now,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "anniversary")
	return s
}

// Input is a manually created anniversary.
type Input struct {
	Title   string
	Content string
	Date    time.Time
	Rule    recurrence.Rule
}

func (in *Input) validate(horizon time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(in.Title); n < minTitleLen || n > maxTitleLen {
		return fmt.Errorf("%w: title must be %d to %d characters", model.ErrInvalidInput, minTitleLen, maxTitleLen)
	}
	if utf8.RuneCountInString(in.Content) > maxContentLen {
		return fmt.Errorf("%w: content must be at most %d characters", model.ErrInvalidInput, maxContentLen)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrInvalidInput)
	}
	in.Date = recurrence.DateOf(in.Date)
	if in.Date.After(horizon) {
		return fmt.Errorf("%w: date must be on or before %s", model.ErrInvalidInput, horizon.Format(time.DateOnly))
	}
	// HUNDRED_DAYS is reserved for the first-met date.
	if !in.Rule.ValidForAnniversary() || in.Rule == recurrence.HundredDays {
		return fmt.Errorf("%w: repeat rule must be NONE or YEAR", model.ErrInvalidInput)
	}
	return nil
}

// CreateForBirthday materializes the member's yearly birthday for their
// couple. It is a no-op when the birthday series already exists.
func (s *Service) CreateForBirthday(ctx context.Context, member *model.Member) (*model.AnniversaryPattern, error) {
	if member.Birthday == nil {
		return nil, fmt.Errorf("%w: member %d has no birthday", model.ErrInvalidInput, member.ID)
	}

	couple, err := s.couples.GetByMember(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	if couple == nil {
		return nil, model.ErrNotConnected
	}

	exists, err := s.store.HasBirthdayPattern(ctx, couple.ID, member.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	birth := recurrence.DateOf(*member.Birthday)
	memberID := member.ID
	p := model.AnniversaryPattern{
		CoupleID:   couple.ID,
		MemberID:   &memberID,
		Category:   model.CategoryBirth,
		RepeatRule: recurrence.Yearly,
		AnchorDate: birth,
	}
	return s.persist(ctx, p, Birthday(member.Name, birth, s.horizon))
}

// CreateForFirstDate materializes the first-met day, every hundredth day
// and every yearly anniversary of the couple, one pattern per series.
func (s *Service) CreateForFirstDate(ctx context.Context, couple *model.Couple) ([]model.AnniversaryPattern, error) {
	firstDate := recurrence.DateOf(couple.FirstDate)

	var patterns []model.AnniversaryPattern
	for _, rule := range []recurrence.Rule{recurrence.None, recurrence.HundredDays, recurrence.Yearly} {
		anniversaries, err := FirstDate(firstDate, rule, s.horizon)
		if err != nil {
			return patterns, err
		}
		p, err := s.persist(ctx, model.AnniversaryPattern{
			CoupleID:   couple.ID,
			Category:   model.CategoryFirstDate,
			RepeatRule: rule,
			AnchorDate: firstDate,
		}, anniversaries)
		if err != nil {
			return patterns, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, nil
}

// Create materializes a manual anniversary for the requester's couple.
func (s *Service) Create(ctx context.Context, requesterID, coupleID int64, in Input) (*model.AnniversaryPattern, []model.Anniversary, error) {
	if err := in.validate(s.horizon); err != nil {
		return nil, nil, err
	}
	if _, err := s.authorize(ctx, requesterID, coupleID); err != nil {
		return nil, nil, err
	}

	anniversaries, err := Repeat(in.Title, in.Content, in.Date, in.Rule, s.horizon)
	if err != nil {
		return nil, nil, err
	}

	p, saved, err := s.store.CreatePattern(ctx, model.AnniversaryPattern{
		CoupleID:   coupleID,
		Category:   model.CategoryOther,
		RepeatRule: in.Rule,
		AnchorDate: in.Date,
	}, anniversaries)
	s.metrics.Materialized("anniversary", in.Rule.AnniversaryCode(), len(saved), err)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("anniversary created", "couple_id", coupleID, "pattern_id", p.ID, "rule", in.Rule, "records", len(saved))
	return p, saved, nil
}

// Coming returns the next size anniversaries of the couple from today.
func (s *Service) Coming(ctx context.Context, requesterID, coupleID int64, size int) ([]model.Anniversary, error) {
	if size <= 0 {
		size = DefaultComingSize
	}
	if size > MaxComingSize {
		size = MaxComingSize
	}
	if _, err := s.authorize(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}

	today := recurrence.DateOf(s.now().In(s.loc))
	return s.store.ListComing(ctx, coupleID, today, size)
}

// ReadDates returns the distinct dates carrying at least one anniversary of
// the couple that pass the filter.
func (s *Service) ReadDates(ctx context.Context, requesterID, coupleID int64, f calendar.Filter) (dates []time.Time, err error) {
	defer func() { s.metrics.Query("anniversary", err) }()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if _, err := s.authorize(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}

	// Anniversary dates are civil dates stored at midnight UTC.
	from, to := f.Window(time.UTC)
	anniversaries, err := s.store.ListByCouple(ctx, coupleID, from, to)
	if err != nil {
		return nil, err
	}

	spans := make([]calendar.Span, len(anniversaries))
	for i, a := range anniversaries {
		spans[i] = calendar.Span{Start: a.Date, End: a.Date}
	}
	return calendar.Collect(spans, f, time.UTC), nil
}

// ListByDate returns the couple's anniversaries on one date.
func (s *Service) ListByDate(ctx context.Context, requesterID, coupleID int64, date time.Time) ([]model.Anniversary, error) {
	if _, err := s.authorize(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}
	day := recurrence.DateOf(date)
	return s.store.ListByCouple(ctx, coupleID, day, day.AddDate(0, 0, 1))
}

// List returns every anniversary of the couple in date order.
func (s *Service) List(ctx context.Context, requesterID, coupleID int64) ([]model.Anniversary, error) {
	if _, err := s.authorize(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}
	return s.store.ListByCouple(ctx, coupleID, time.Time{}, time.Time{})
}

// authorize checks that the requester belongs to coupleID.
func (s *Service) authorize(ctx context.Context, requesterID, coupleID int64) (*model.Couple, error) {
	couple, err := s.couples.GetByMember(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if couple == nil {
		return nil, model.ErrNotConnected
	}
	if couple.ID != coupleID {
		return nil, model.ErrNoPermission
	}
	return couple, nil
}

func (s *Service) persist(ctx context.Context, p model.AnniversaryPattern, anniversaries []model.Anniversary) (*model.AnniversaryPattern, error) {
	saved, records, err := s.store.CreatePattern(ctx, p, anniversaries)
	s.metrics.Materialized("anniversary", p.RepeatRule.AnniversaryCode(), len(records), err)
	if err != nil {
		return nil, fmt.Errorf("materialize %s %s: %w", p.Category, p.RepeatRule, err)
	}
	s.logger.Info("anniversary pattern materialized",
		"couple_id", p.CoupleID,
		"category", p.Category,
		"rule", p.RepeatRule,
		"records", len(records),
	)
	return saved, nil
}
