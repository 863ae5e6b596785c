package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/calendar"
	"github.com/dukerupert/dateplan/internal/model"
	ws "github.com/dukerupert/dateplan/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as fallback with a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrSelfConnection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNoPermission):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrNotConnected),
		errors.Is(err, model.ErrAlreadyConnected),
		errors.Is(err, model.ErrBirthdayRegistered):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// parseDate reads a YYYY-MM-DD value as a civil date.
func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// parseOptionalDate returns nil for an empty value.
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalInt(r *http.Request, key string) (*int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &n, nil
}

// parseFilter reads the optional year and month query parameters.
func parseFilter(r *http.Request) (calendar.Filter, error) {
	year, err := optionalInt(r, "year")
	if err != nil {
		return calendar.Filter{}, err
	}
	month, err := optionalInt(r, "month")
	if err != nil {
		return calendar.Filter{}, err
	}
	f := calendar.NewFilter(year, month)
	return f, f.Validate()
}

// parseDay reads the required year, month and day query parameters.
func parseDay(r *http.Request) (time.Time, error) {
	var parts [3]int
	for i, key := range []string{"year", "month", "day"} {
		n, err := optionalInt(r, key)
		if err != nil {
			return time.Time{}, err
		}
		if n == nil {
			return time.Time{}, fmt.Errorf("%s is required", key)
		}
		parts[i] = *n
	}
	d := time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	if d.Year() != parts[0] || int(d.Month()) != parts[1] || d.Day() != parts[2] {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", parts[0], parts[1], parts[2])
	}
	return d, nil
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

func newDatesResponse(dates []time.Time) datesResponse {
	out := datesResponse{Dates: make([]string, len(dates))}
	for i, d := range dates {
		out.Dates[i] = d.Format(time.DateOnly)
	}
	return out
}

// notify tells the requester and their partner about a change.
func notify(ctx context.Context, hub *ws.Hub, entity, action string, id int64, extra map[string]any) {
	if hub == nil {
		return
	}
	hub.Notify(auth.Audience(ctx), ws.NewMessage(entity, action, id, extra))
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
