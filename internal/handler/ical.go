package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/dateplan/internal/anniversary"
	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/ical"
	"github.com/dukerupert/dateplan/internal/schedule"
)

type ICalHandler struct {
	schedules     *schedule.Service
	anniversaries *anniversary.Service
	logger        *slog.Logger
	now           func() time.Time
}

func NewICalHandler(schedules *schedule.Service, anniversaries *anniversary.Service, logger *slog.Logger) *ICalHandler {
	return &ICalHandler{schedules: schedules, anniversaries: anniversaries, logger: logger, now: time.Now}
}

// Export writes the member's schedules as an iCalendar feed. When the
// requester is connected, the couple's anniversaries and datings are
// included.
func (h *ICalHandler) Export(w http.ResponseWriter, r *http.Request) {
	memberID, err := parsePathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	ctx := r.Context()
	requesterID := auth.MemberID(ctx)

	feed := ical.Feed{
		Name:     fmt.Sprintf("dateplan member %d", memberID),
		Location: h.schedules.Location(),
	}
	feed.Schedules, err = h.schedules.ListAll(ctx, requesterID, memberID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to export calendar")
		return
	}

	if coupleID := auth.CoupleID(ctx); coupleID != 0 {
		if feed.Anniversaries, err = h.anniversaries.List(ctx, requesterID, coupleID); err != nil {
			writeServiceError(w, h.logger, err, "failed to export calendar")
			return
		}
		if feed.Datings, err = h.schedules.ListDatings(ctx, requesterID, coupleID); err != nil {
			writeServiceError(w, h.logger, err, "failed to export calendar")
			return
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="member-%d.ics"`, memberID))
	if err := feed.Write(w, h.now()); err != nil {
		h.logger.Error("write calendar", "error", err)
	}
}
