package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/couple"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type CoupleHandler struct {
	couples *couple.Service
	hub     *ws.Hub
	logger  *slog.Logger
}

func NewCoupleHandler(couples *couple.Service, hub *ws.Hub, logger *slog.Logger) *CoupleHandler {
	return &CoupleHandler{couples: couples, hub: hub, logger: logger}
}

type connectRequest struct {
	PartnerID int64  `json:"partner_id"`
	FirstDate string `json:"first_date"`
}

func (h *CoupleHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	firstDate, err := parseDate(req.FirstDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "first_date must be YYYY-MM-DD format")
		return
	}

	requesterID := auth.MemberID(r.Context())
	c, err := h.couples.Connect(r.Context(), requesterID, req.PartnerID, firstDate)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to connect couple")
		return
	}

	if h.hub != nil {
		h.hub.Notify([]int64{c.Member1ID, c.Member2ID}, ws.NewMessage("couple", "connected", c.ID, nil))
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CoupleHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, err := h.couples.ForMember(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get couple")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
