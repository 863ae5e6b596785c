package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/recurrence"
	"github.com/dukerupert/dateplan/internal/schedule"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type ScheduleHandler struct {
	schedules *schedule.Service
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewScheduleHandler(schedules *schedule.Service, hub *ws.Hub, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, hub: hub, logger: logger}
}

type detailsRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Location  string `json:"location"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (req detailsRequest) details(w http.ResponseWriter) (schedule.Details, bool) {
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return schedule.Details{}, false
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return schedule.Details{}, false
	}
	return schedule.Details{
		Title:    req.Title,
		Content:  req.Content,
		Location: req.Location,
		Start:    start,
		End:      end,
	}, true
}

type scheduleRequest struct {
	detailsRequest
	RepeatRule    recurrence.Rule `json:"repeat_rule"`
	RepeatEndDate string          `json:"repeat_end_date"`
}

type scheduleCreated struct {
	ID          int64           `json:"id"`
	RepeatRule  recurrence.Rule `json:"repeat_rule"`
	RepeatStart string          `json:"repeat_start"`
	RepeatEnd   string          `json:"repeat_end"`
	RRule       string          `json:"rrule,omitempty"`
	Records     int             `json:"records"`
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	memberID, err := parsePathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	details, ok := req.details(w)
	if !ok {
		return
	}
	repeatEnd, err := parseOptionalDate(req.RepeatEndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "repeat_end_date must be YYYY-MM-DD format")
		return
	}

	p, saved, err := h.schedules.Create(r.Context(), auth.MemberID(r.Context()), memberID, schedule.Definition{
		Details:   details,
		Rule:      req.RepeatRule,
		RepeatEnd: repeatEnd,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create schedule")
		return
	}

	notify(r.Context(), h.hub, "schedule", "created", p.ID, nil)
	writeJSON(w, http.StatusCreated, scheduleCreated{
		ID:          p.ID,
		RepeatRule:  p.RepeatRule,
		RepeatStart: p.RepeatStart.Format(time.DateOnly),
		RepeatEnd:   p.RepeatEnd.Format(time.DateOnly),
		RRule:       p.RRule,
		Records:     len(saved),
	})
}

func (h *ScheduleHandler) Dates(w http.ResponseWriter, r *http.Request) {
	memberID, err := parsePathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates, err := h.schedules.ReadSchedule(r.Context(), memberID, auth.MemberID(r.Context()), f)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to read schedule dates")
		return
	}
	writeJSON(w, http.StatusOK, newDatesResponse(dates))
}

func (h *ScheduleHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	memberID, err := parsePathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	day, err := parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The query names a calendar day in the service location.
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, h.schedules.Location())

	schedules, err := h.schedules.ListByDate(r.Context(), auth.MemberID(r.Context()), memberID, day)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(schedules))
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := scheduleIDs(w, r)
	if !ok {
		return
	}

	var req detailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	details, ok := req.details(w)
	if !ok {
		return
	}

	sc, err := h.schedules.Update(r.Context(), auth.MemberID(r.Context()), memberID, scheduleID, details)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update schedule")
		return
	}

	notify(r.Context(), h.hub, "schedule", "updated", sc.ID, nil)
	writeJSON(w, http.StatusOK, sc)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := scheduleIDs(w, r)
	if !ok {
		return
	}
	deleteRepeat := r.URL.Query().Get("delete_repeat") == "true"

	if err := h.schedules.Delete(r.Context(), auth.MemberID(r.Context()), memberID, scheduleID, deleteRepeat); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete schedule")
		return
	}

	notify(r.Context(), h.hub, "schedule", "deleted", scheduleID, map[string]any{"delete_repeat": deleteRepeat})
	w.WriteHeader(http.StatusNoContent)
}

func scheduleIDs(w http.ResponseWriter, r *http.Request) (memberID, scheduleID int64, ok bool) {
	memberID, err := parsePathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return 0, 0, false
	}
	scheduleID, err = parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, 0, false
	}
	return memberID, scheduleID, true
}
