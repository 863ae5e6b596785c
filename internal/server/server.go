package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/dateplan/internal/anniversary"
	"github.com/dukerupert/dateplan/internal/couple"
	"github.com/dukerupert/dateplan/internal/handler"
	"github.com/dukerupert/dateplan/internal/metrics"
	"github.com/dukerupert/dateplan/internal/middleware"
	"github.com/dukerupert/dateplan/internal/push"
	"github.com/dukerupert/dateplan/internal/reminder"
	"github.com/dukerupert/dateplan/internal/schedule"
	"github.com/dukerupert/dateplan/internal/store"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type Options struct {
	Location           *time.Location
	Horizon            time.Time
	RateLimitPerMinute int
	// Reminder is nil when the reminder job is disabled.
	Reminder *reminder.Config
	// Push is nil when no VAPID keys are configured.
	Push *push.Config
}

type Server struct {
	hub          *ws.Hub
	metrics      *metrics.Metrics
	memberStore  *store.MemberStore
	coupleStore  *store.CoupleStore
	memberH      *handler.MemberHandler
	coupleH      *handler.CoupleHandler
	anniversaryH *handler.AnniversaryHandler
	scheduleH    *handler.ScheduleHandler
	datingH      *handler.DatingHandler
	icalH        *handler.ICalHandler
	pushH        *handler.PushHandler
	limiter      *middleware.Limiter
	quota        middleware.Quota
	reminder     *reminder.Scheduler
	logger       *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New()

	memberStore := store.NewMemberStore(db)
	coupleStore := store.NewCoupleStore(db)
	anniversaryStore := store.NewAnniversaryStore(db)
	scheduleStore := store.NewScheduleStore(db)
	datingStore := store.NewDatingStore(db)
	pushStore := store.NewPushStore(db)

	anniversarySvc := anniversary.NewService(anniversaryStore, coupleStore, anniversary.Options{
		Horizon:  opts.Horizon,
		Location: opts.Location,
		Logger:   logger,
		Metrics:  m,
	})
	scheduleSvc := schedule.NewService(scheduleStore, datingStore, coupleStore, schedule.Options{
		Horizon:  opts.Horizon,
		Location: opts.Location,
		Logger:   logger,
		Metrics:  m,
	})
	coupleSvc := couple.NewService(memberStore, coupleStore, anniversarySvc, opts.Horizon, logger)

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if opts.Push != nil {
		pushSvc = push.NewService(*opts.Push, pushStore, logger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push"))
	}

	var sched *reminder.Scheduler
	if opts.Reminder != nil {
		var err error
		sched, err = reminder.NewScheduler(*opts.Reminder, anniversaryStore, coupleStore, hub, logger.With("component", "reminder"))
		if err != nil {
			return nil, err
		}
		sched.WithLedger(pushStore)
		if pushSvc != nil {
			sched.WithPush(pushSvc)
		}
	}

	rateLimit := opts.RateLimitPerMinute
	if rateLimit <= 0 {
		rateLimit = 30
	}

	return &Server{
		hub:          hub,
		metrics:      m,
		memberStore:  memberStore,
		coupleStore:  coupleStore,
		memberH:      handler.NewMemberHandler(coupleSvc, hub, logger.With("component", "member")),
		coupleH:      handler.NewCoupleHandler(coupleSvc, hub, logger.With("component", "couple")),
		anniversaryH: handler.NewAnniversaryHandler(anniversarySvc, hub, logger.With("component", "anniversary")),
		scheduleH:    handler.NewScheduleHandler(scheduleSvc, hub, logger.With("component", "schedule")),
		datingH:      handler.NewDatingHandler(scheduleSvc, hub, logger.With("component", "dating")),
		icalH:        handler.NewICalHandler(scheduleSvc, anniversarySvc, logger.With("component", "ical")),
		pushH:        pushH,
		limiter:      middleware.NewLimiter(),
		quota:        middleware.PerMinute(rateLimit),
		reminder:     sched,
		logger:       logger,
	}, nil
}

// Limiter returns the request limiter so its buckets can be swept.
func (s *Server) Limiter() *middleware.Limiter {
	return s.limiter
}

// Reminder returns the anniversary reminder job, or nil when disabled.
func (s *Server) Reminder() *reminder.Scheduler {
	return s.reminder
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())
	outerMux.HandleFunc("POST /api/members", s.rateLimited(middleware.RealIP, s.memberH.Create))

	// Everything else requires a known member
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireMember := middleware.RequireMember(s.memberStore, s.coupleStore)
	outerMux.Handle("/", requireMember(protectedMux))

	var h http.Handler = outerMux
	h = middleware.Metrics(s.metrics)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimited throttles the expensive materializing routes. Each route has
// its own quota per caller.
func (s *Server) rateLimited(caller func(*http.Request) string, h http.HandlerFunc) http.HandlerFunc {
	return s.limiter.Limit(s.quota, caller)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, nil))

	// Members
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("PUT /api/members/{id}/birthday", s.rateLimited(middleware.MemberKey, s.memberH.RegisterBirthday))

	// Couples
	mux.HandleFunc("POST /api/couples", s.rateLimited(middleware.MemberKey, s.coupleH.Connect))
	mux.HandleFunc("GET /api/couples/me", s.coupleH.Me)

	// Anniversaries
	mux.HandleFunc("POST /api/couples/{couple_id}/anniversaries", s.rateLimited(middleware.MemberKey, s.anniversaryH.Create))
	mux.HandleFunc("GET /api/couples/{couple_id}/anniversaries", s.anniversaryH.ListByDate)
	mux.HandleFunc("GET /api/couples/{couple_id}/anniversaries/dates", s.anniversaryH.Dates)
	mux.HandleFunc("GET /api/couples/{couple_id}/anniversaries/coming", s.anniversaryH.Coming)

	// Datings
	mux.HandleFunc("POST /api/couples/{couple_id}/datings", s.datingH.Create)
	mux.HandleFunc("GET /api/couples/{couple_id}/datings/dates", s.datingH.Dates)
	mux.HandleFunc("PUT /api/couples/{couple_id}/datings/{id}", s.datingH.Update)
	mux.HandleFunc("DELETE /api/couples/{couple_id}/datings/{id}", s.datingH.Delete)

	// Schedules
	mux.HandleFunc("POST /api/members/{member_id}/schedules", s.rateLimited(middleware.MemberKey, s.scheduleH.Create))
	mux.HandleFunc("GET /api/members/{member_id}/schedules", s.scheduleH.ListByDate)
	mux.HandleFunc("GET /api/members/{member_id}/schedules/dates", s.scheduleH.Dates)
	mux.HandleFunc("PUT /api/members/{member_id}/schedules/{id}", s.scheduleH.Update)
	mux.HandleFunc("DELETE /api/members/{member_id}/schedules/{id}", s.scheduleH.Delete)

	// Calendar export
	mux.HandleFunc("GET /api/members/{member_id}/calendar.ics", s.icalH.Export)

	// Push
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.rateLimited(middleware.MemberKey, s.pushH.TestNotification))
	}
}
