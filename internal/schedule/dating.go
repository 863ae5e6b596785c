package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/dateplan/internal/calendar"
	"github.com/dukerupert/dateplan/internal/model"
)

func (s *Service) CreateDating(ctx context.Context, requesterID, coupleID int64, d Details) (*model.Dating, error) {
	if err := d.validate(s.horizon); err != nil {
		return nil, err
	}
	if err := s.inCouple(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}
	dating, err := s.datings.Create(ctx, coupleID, d.Title, d.Location, d.Content, d.Start, d.End)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dating created", "couple_id", coupleID, "dating_id", dating.ID)
	return dating, nil
}

func (s *Service) UpdateDating(ctx context.Context, requesterID, coupleID, datingID int64, d Details) (*model.Dating, error) {
	if err := d.validate(s.horizon); err != nil {
		return nil, err
	}
	if _, err := s.dating(ctx, requesterID, coupleID, datingID); err != nil {
		return nil, err
	}
	return s.datings.Update(ctx, datingID, d.Title, d.Location, d.Content, d.Start, d.End)
}

func (s *Service) DeleteDating(ctx context.Context, requesterID, coupleID, datingID int64) error {
	if _, err := s.dating(ctx, requesterID, coupleID, datingID); err != nil {
		return err
	}
	return s.datings.Delete(ctx, datingID)
}

// ReadDatingDates returns the distinct calendar dates covered by the
// couple's datings that pass f.
func (s *Service) ReadDatingDates(ctx context.Context, requesterID, coupleID int64, f calendar.Filter) (dates []time.Time, err error) {
	defer func() { s.metrics.Query("dating", err) }()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if err := s.inCouple(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}

	from, to := f.Window(s.loc)
	datings, err := s.datings.ListForCouple(ctx, coupleID, from, to)
	if err != nil {
		return nil, err
	}

	spans := make([]calendar.Span, len(datings))
	for i, d := range datings {
		spans[i] = calendar.Span{Start: d.StartTime, End: d.EndTime}
	}
	return calendar.Collect(spans, f, s.loc), nil
}

// ListDatings returns every dating of the couple.
func (s *Service) ListDatings(ctx context.Context, requesterID, coupleID int64) ([]model.Dating, error) {
	if err := s.inCouple(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}
	return s.datings.ListForCouple(ctx, coupleID, time.Time{}, time.Time{})
}

func (s *Service) inCouple(ctx context.Context, requesterID, coupleID int64) error {
	couple, err := s.couples.GetByMember(ctx, requesterID)
	if err != nil {
		return err
	}
	if couple == nil {
		return model.ErrNotConnected
	}
	if couple.ID != coupleID {
		return model.ErrNoPermission
	}
	return nil
}

func (s *Service) dating(ctx context.Context, requesterID, coupleID, datingID int64) (*model.Dating, error) {
	if err := s.inCouple(ctx, requesterID, coupleID); err != nil {
		return nil, err
	}
	d, err := s.datings.GetByID(ctx, datingID)
	if err != nil {
		return nil, err
	}
	if d == nil || d.CoupleID != coupleID {
		return nil, model.ErrNotFound
	}
	return d, nil
}
