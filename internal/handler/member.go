package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/couple"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

type MemberHandler struct {
	couples *couple.Service
	hub     *ws.Hub
	logger  *slog.Logger
}

func NewMemberHandler(couples *couple.Service, hub *ws.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{couples: couples, hub: hub, logger: logger}
}

type memberRequest struct {
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	birthday, err := parseOptionalDate(req.Birthday)
	if err != nil {
		writeError(w, http.StatusBadRequest, "birthday must be YYYY-MM-DD format")
		return
	}

	m, err := h.couples.CreateMember(r.Context(), req.Name, birthday)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create member")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	// Members can see themselves and their partner.
	ac, _ := auth.FromContext(r.Context())
	if id != ac.MemberID && id != ac.PartnerID {
		writeError(w, http.StatusForbidden, "no permission")
		return
	}

	m, err := h.couples.GetMember(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type birthdayRequest struct {
	Birthday string `json:"birthday"`
}

func (h *MemberHandler) RegisterBirthday(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req birthdayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	birthday, err := parseDate(req.Birthday)
	if err != nil {
		writeError(w, http.StatusBadRequest, "birthday must be YYYY-MM-DD format")
		return
	}

	m, err := h.couples.RegisterBirthday(r.Context(), auth.MemberID(r.Context()), id, birthday)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to register birthday")
		return
	}

	notify(r.Context(), h.hub, "member", "birthday_registered", m.ID, nil)
	writeJSON(w, http.StatusOK, m)
}
