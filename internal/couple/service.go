// Package couple registers members, connects couples and triggers the
// anniversary materialization that follows both.
package couple

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

type Members interface {
	Create(ctx context.Context, name string, birthday *time.Time) (*model.Member, error)
	GetByID(ctx context.Context, id int64) (*model.Member, error)
	SetBirthday(ctx context.Context, id int64, birthday time.Time) (bool, error)
}

type Couples interface {
	Create(ctx context.Context, member1ID, member2ID int64, firstDate time.Time) (*model.Couple, error)
	GetByMember(ctx context.Context, memberID int64) (*model.Couple, error)
	Delete(ctx context.Context, id int64) error
}

// Anniversaries materializes the series owned by a couple.
type Anniversaries interface {
	CreateForFirstDate(ctx context.Context, c *model.Couple) ([]model.AnniversaryPattern, error)
	CreateForBirthday(ctx context.Context, m *model.Member) (*model.AnniversaryPattern, error)
}

type Service struct {
	members       Members
	couples       Couples
	anniversaries Anniversaries
	horizon       time.Time
	now           func() time.Time
	logger        *slog.Logger
}

func NewService(members Members, couples Couples, anniversaries Anniversaries, horizon time.Time, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		members:       members,
		couples:       couples,
		anniversaries: anniversaries,
		horizon:       recurrence.DateOf(horizon),
		now:           time.Now,
		logger:        logger.With("component", "couple"),
	}
}

func (s *Service) CreateMember(ctx context.Context, name string, birthday *time.Time) (*model.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}
	if birthday != nil {
		b := recurrence.DateOf(*birthday)
		if err := s.checkPast(b, "birthday"); err != nil {
			return nil, err
		}
		birthday = &b
	}
	return s.members.Create(ctx, name, birthday)
}

func (s *Service) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, model.ErrNotFound
	}
	return m, nil
}

// RegisterBirthday sets the member's birthday once. When the member is
// already part of a couple the birthday series is materialized right away.
func (s *Service) RegisterBirthday(ctx context.Context, requesterID, memberID int64, birthday time.Time) (*model.Member, error) {
	if requesterID != memberID {
		return nil, model.ErrNoPermission
	}
	birthday = recurrence.DateOf(birthday)
	if err := s.checkPast(birthday, "birthday"); err != nil {
		return nil, err
	}

	if _, err := s.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	ok, err := s.members.SetBirthday(ctx, memberID, birthday)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrBirthdayRegistered
	}

	m, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if _, err := s.anniversaries.CreateForBirthday(ctx, m); err != nil && !errors.Is(err, model.ErrNotConnected) {
		return nil, err
	}
	return m, nil
}

// Connect pairs the requester with partnerID and materializes the couple's
// first-met and birthday anniversaries. If materialization fails the couple
// is deleted again, which cascades to any patterns already written.
func (s *Service) Connect(ctx context.Context, requesterID, partnerID int64, firstDate time.Time) (*model.Couple, error) {
	if requesterID == partnerID {
		return nil, model.ErrSelfConnection
	}
	if firstDate.IsZero() {
		return nil, fmt.Errorf("%w: first date is required", model.ErrInvalidInput)
	}
	firstDate = recurrence.DateOf(firstDate)
	if err := s.checkPast(firstDate, "first date"); err != nil {
		return nil, err
	}

	members := make([]*model.Member, 0, 2)
	for _, id := range []int64{requesterID, partnerID} {
		m, err := s.GetMember(ctx, id)
		if err != nil {
			return nil, err
		}
		existing, err := s.couples.GetByMember(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, model.ErrAlreadyConnected
		}
		members = append(members, m)
	}

	c, err := s.couples.Create(ctx, requesterID, partnerID, firstDate)
	if err != nil {
		return nil, err
	}
	s.logger.Info("couple connected", "couple_id", c.ID, "member1_id", c.Member1ID, "member2_id", c.Member2ID)

	if err := s.materialize(ctx, c, members); err != nil {
		// Undo the connection so the pair can retry from scratch.
		if derr := s.couples.Delete(context.WithoutCancel(ctx), c.ID); derr != nil {
			s.logger.Error("undo couple after failed materialization", "couple_id", c.ID, "error", derr)
			return nil, errors.Join(err, derr)
		}
		s.logger.Warn("couple connection undone", "couple_id", c.ID, "error", err)
		return nil, err
	}
	return c, nil
}

func (s *Service) materialize(ctx context.Context, c *model.Couple, members []*model.Member) error {
	if _, err := s.anniversaries.CreateForFirstDate(ctx, c); err != nil {
		return fmt.Errorf("materialize first date: %w", err)
	}
	for _, m := range members {
		if m.Birthday == nil {
			continue
		}
		if _, err := s.anniversaries.CreateForBirthday(ctx, m); err != nil {
			return fmt.Errorf("materialize birthday of member %d: %w", m.ID, err)
		}
	}
	return nil
}

// ForMember returns the couple memberID belongs to.
func (s *Service) ForMember(ctx context.Context, memberID int64) (*model.Couple, error) {
	c, err := s.couples.GetByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.ErrNotConnected
	}
	return c, nil
}

func (s *Service) checkPast(d time.Time, field string) error {
	if d.After(recurrence.DateOf(s.now())) {
		return fmt.Errorf("%w: %s cannot be in the future", model.ErrInvalidInput, field)
	}
	if d.After(s.horizon) {
		return fmt.Errorf("%w: %s is past the calendar horizon", model.ErrInvalidInput, field)
	}
	return nil
}
