package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/dateplan/internal/model"
	"github.com/dukerupert/dateplan/internal/schedule"
)

func TestWriteServiceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrInvalidRange, http.StatusBadRequest},
		{schedule.ErrRepeatEndRequired, http.StatusBadRequest},
		{model.ErrSelfConnection, http.StatusBadRequest},
		{model.ErrNoPermission, http.StatusForbidden},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrNotConnected, http.StatusConflict},
		{fmt.Errorf("connect: %w", model.ErrAlreadyConnected), http.StatusConflict},
		{model.ErrBirthdayRegistered, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, logger, tt.err, "failed")
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestParseDay(t *testing.T) {
	r := httptest.NewRequest("GET", "/?year=2024&month=2&day=29", nil)
	got, err := parseDay(r)
	if err != nil {
		t.Fatalf("parseDay error: %v", err)
	}
	if !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDay = %v", got)
	}

	for _, q := range []string{"year=2023&month=2&day=29", "year=2024&month=2", "year=2024&month=x&day=1"} {
		r := httptest.NewRequest("GET", "/?"+q, nil)
		if _, err := parseDay(r); err == nil {
			t.Errorf("parseDay(%q) should have failed", q)
		}
	}
}

func TestParseFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/?month=3", nil)
	f, err := parseFilter(r)
	if err != nil {
		t.Fatalf("parseFilter error: %v", err)
	}
	if _, ok := f.Year.Get(); ok {
		t.Error("year should be absent")
	}
	if m, _ := f.Month.Get(); m != 3 {
		t.Errorf("month = %d, want 3", m)
	}

	r = httptest.NewRequest("GET", "/?year=2024&month=0", nil)
	if _, err := parseFilter(r); err == nil {
		t.Error("month 0 should be rejected")
	}
}

func TestNewDatesResponse(t *testing.T) {
	resp := newDatesResponse(nil)
	if resp.Dates == nil || len(resp.Dates) != 0 {
		t.Errorf("Dates = %#v, want empty slice", resp.Dates)
	}

	resp = newDatesResponse([]time.Time{time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)})
	if len(resp.Dates) != 1 || resp.Dates[0] != "2024-03-30" {
		t.Errorf("Dates = %v", resp.Dates)
	}
}
