// Package reminder notifies both partners of anniversaries coming up in
// the next few days.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/push"
	"github.com/dukerupert/dateplan/internal/recurrence"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type AnniversaryLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Anniversary, error)
}

type CoupleLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Couple, error)
}

type Notifier interface {
	Notify(memberIDs []int64, msg ws.Message)
}

// Pusher delivers reminders to members' browsers when the app is closed.
type Pusher interface {
	Push(ctx context.Context, memberIDs []int64, payload push.Payload) (int, error)
}

// Ledger remembers which reminders already went out so a rerun on the same
// day does not repeat them.
type Ledger interface {
	WasSent(ctx context.Context, anniversaryID int64, daysLeft int) (bool, error)
	RecordSent(ctx context.Context, anniversaryID int64, daysLeft int) error
	CleanupSent(ctx context.Context, before time.Time) error
}

// ledgerRetention bounds how long sent reminders are remembered. Anything
// older refers to anniversaries that have already passed.
const ledgerRetention = 30 * 24 * time.Hour

type Config struct {
	Cron      string
	DaysAhead int
	Location  *time.Location
}

// Scheduler runs the reminder job on a cron schedule.
type Scheduler struct {
	cron          *cron.Cron
	anniversaries AnniversaryLister
	couples       CoupleLookup
	notifier      Notifier
	pusher        Pusher
	ledger        Ledger
	daysAhead     int
	loc           *time.Location
	now           func() time.Time
	logger        *slog.Logger
}

func NewScheduler(cfg Config, anniversaries AnniversaryLister, couples CoupleLookup, notifier Notifier, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		anniversaries: anniversaries,
		couples:       couples,
		notifier:      notifier,
		daysAhead:     cfg.DaysAhead,
		loc:           cfg.Location,
		now:           time.Now,
		logger:        logger,
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.tick); err != nil {
		return nil, fmt.Errorf("schedule reminder %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// WithPush also sends each reminder over Web Push.
func (s *Scheduler) WithPush(p Pusher) *Scheduler {
	s.pusher = p
	return s
}

// WithLedger skips reminders already recorded in l and records new ones.
func (s *Scheduler) WithLedger(l Ledger) *Scheduler {
	s.ledger = l
	return s
}

// Start begins running the job in the background. The schedule stops when
// ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("reminder scheduler started", "days_ahead", s.daysAhead)

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.Run(ctx)
	if err != nil {
		s.logger.Error("reminder run failed", "error", err)
		return
	}
	s.logger.Info("reminders sent", "count", n)

	if s.ledger != nil {
		if err := s.ledger.CleanupSent(ctx, s.now().Add(-ledgerRetention)); err != nil {
			s.logger.Warn("cleanup sent reminders", "error", err)
		}
	}
}

// Run notifies the partners of every anniversary dated from today through
// today + daysAhead, and returns how many anniversaries were announced.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	today := recurrence.DateOf(s.now().In(s.loc))
	upcoming, err := s.anniversaries.ListBetween(ctx, today, today.AddDate(0, 0, s.daysAhead+1))
	if err != nil {
		return 0, fmt.Errorf("list upcoming anniversaries: %w", err)
	}

	couples := make(map[int64]*model.Couple)
	sent := 0
	for _, a := range upcoming {
		c, ok := couples[a.CoupleID]
		if !ok {
			c, err = s.couples.GetByID(ctx, a.CoupleID)
			if err != nil {
				return sent, err
			}
			couples[a.CoupleID] = c
		}
		if c == nil {
			continue
		}

		daysLeft := int(a.Date.Sub(today).Hours() / 24)
		if s.ledger != nil {
			done, err := s.ledger.WasSent(ctx, a.ID, daysLeft)
			if err != nil {
				return sent, err
			}
			if done {
				continue
			}
		}

		audience := []int64{c.Member1ID, c.Member2ID}
		s.notifier.Notify(audience, ws.NewMessage("anniversary", "upcoming", a.ID, map[string]any{
			"title":     a.Title,
			"date":      a.Date.Format(time.DateOnly),
			"days_left": daysLeft,
			"category":  string(a.Category),
		}))
		if s.pusher != nil {
			if _, err := s.pusher.Push(ctx, audience, reminderPayload(a, daysLeft)); err != nil {
				s.logger.Warn("push reminder failed", "anniversary_id", a.ID, "error", err)
			}
		}
		if s.ledger != nil {
			if err := s.ledger.RecordSent(ctx, a.ID, daysLeft); err != nil {
				return sent, err
			}
		}
		sent++
	}
	return sent, nil
}

func reminderPayload(a model.Anniversary, daysLeft int) push.Payload {
	body := fmt.Sprintf("D-%d (%s)", daysLeft, a.Date.Format(time.DateOnly))
	if daysLeft == 0 {
		body = "D-Day"
	}
	return push.Payload{
		Title: a.Title,
		Body:  body,
		URL:   fmt.Sprintf("/api/couples/%d/anniversaries/coming", a.CoupleID),
		Tag:   fmt.Sprintf("anniversary-%d", a.ID),
	}
}
