package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/schedule"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type DatingHandler struct {
	schedules *schedule.Service
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewDatingHandler(schedules *schedule.Service, hub *ws.Hub, logger *slog.Logger) *DatingHandler {
	return &DatingHandler{schedules: schedules, hub: hub, logger: logger}
}

func (h *DatingHandler) Create(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
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

	d, err := h.schedules.CreateDating(r.Context(), auth.MemberID(r.Context()), coupleID, details)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create dating")
		return
	}

	notify(r.Context(), h.hub, "dating", "created", d.ID, nil)
	writeJSON(w, http.StatusCreated, d)
}

func (h *DatingHandler) Dates(w http.ResponseWriter, r *http.Request) {
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

	dates, err := h.schedules.ReadDatingDates(r.Context(), auth.MemberID(r.Context()), coupleID, f)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to read dating dates")
		return
	}
	writeJSON(w, http.StatusOK, newDatesResponse(dates))
}

func (h *DatingHandler) Update(w http.ResponseWriter, r *http.Request) {
	coupleID, datingID, ok := datingIDs(w, r)
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

	d, err := h.schedules.UpdateDating(r.Context(), auth.MemberID(r.Context()), coupleID, datingID, details)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update dating")
		return
	}

	notify(r.Context(), h.hub, "dating", "updated", d.ID, nil)
	writeJSON(w, http.StatusOK, d)
}

func (h *DatingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	coupleID, datingID, ok := datingIDs(w, r)
	if !ok {
		return
	}

	if err := h.schedules.DeleteDating(r.Context(), auth.MemberID(r.Context()), coupleID, datingID); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete dating")
		return
	}

	notify(r.Context(), h.hub, "dating", "deleted", datingID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func datingIDs(w http.ResponseWriter, r *http.Request) (coupleID, datingID int64, ok bool) {
	coupleID, err := parsePathID(r, "couple_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid couple id")
		return 0, 0, false
	}
	datingID, err = parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, 0, false
	}
	return coupleID, datingID, true
}
