package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dateplan/internal/anniversary"
	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/recurrence"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type AnniversaryHandler struct {
	anniversaries *anniversary.Service
	hub           *ws.Hub
	logger        *slog.Logger
}

func NewAnniversaryHandler(anniversaries *anniversary.Service, hub *ws.Hub, logger *slog.Logger) *AnniversaryHandler {
	return &AnniversaryHandler{anniversaries: anniversaries, hub: hub, logger: logger}
}

type anniversaryRequest struct {
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Date       string          `json:"date"`
	RepeatRule recurrence.Rule `json:"repeat_rule"`
}

type anniversaryCreated struct {
	ID         int64           `json:"id"`
	RepeatRule recurrence.Rule `json:"repeat_rule"`
	Records    int             `json:"records"`
}

func (h *AnniversaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
		return
	}

	var req anniversaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD format")
		return
	}

	p, saved, err := h.anniversaries.Create(r.Context(), auth.MemberID(r.Context()), coupleID, anniversary.Input{
		Title:   req.Title,
		Content: req.Content,
		Date:    date,
		Rule:    req.RepeatRule,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create anniversary")
		return
	}

	notify(r.Context(), h.hub, "anniversary", "created", p.ID, nil)
	writeJSON(w, http.StatusCreated, anniversaryCreated{ID: p.ID, RepeatRule: p.RepeatRule, Records: len(saved)})
}

func (h *AnniversaryHandler) Dates(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates, err := h.anniversaries.ReadDates(r.Context(), auth.MemberID(r.Context()), coupleID, f)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to read anniversary dates")
		return
	}
	writeJSON(w, http.StatusOK, newDatesResponse(dates))
}

func (h *AnniversaryHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
		return
	}
	day, err := parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anniversaries, err := h.anniversaries.ListByDate(r.Context(), auth.MemberID(r.Context()), coupleID, day)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list anniversaries")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(anniversaries))
}

func (h *AnniversaryHandler) Coming(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
		return
	}
	size, err := optionalInt(r, "size")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := anniversary.DefaultComingSize
	if size != nil {
		n = *size
	}

	anniversaries, err := h.anniversaries.Coming(r.Context(), auth.MemberID(r.Context()), coupleID, n)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list coming anniversaries")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(anniversaries))
}
