package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/dateplan/internal/database"
	"github.com/dukerupert/dateplan/internal/middleware"
	"github.com/dukerupert/dateplan/internal/push"
	"github.com/dukerupert/dateplan/internal/reminder"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, func(*Options) {})
}

func newTestServerWith(t *testing.T, configure func(*Options)) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	opts := Options{
		Location: seoul,
		Horizon:  time.Date(2049, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	configure(&opts)
	srv, err := New(db, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return &testServer{t: t, handler: srv.Router()}
}

func (s *testServer) do(method, path string, memberID int64, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if memberID != 0 {
		req.Header.Set(middleware.MemberHeader, strconv.FormatInt(memberID, 10))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createMember(name, birthday string) int64 {
	s.t.Helper()
	rec := s.do("POST", "/api/members", 0, map[string]string{"name": name, "birthday": birthday})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var m struct {
		ID int64 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m.ID
}

func (s *testServer) connect(a, b int64, firstDate string) int64 {
	s.t.Helper()
	rec := s.do("POST", "/api/couples", a, map[string]any{"partner_id": b, "first_date": firstDate})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var c struct {
		ID int64 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c.ID
}

func decodeDates(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Dates []string `json:"dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Dates
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do("GET", "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequiresMember(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/couples/me", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("GET", "/api/couples/me", 999, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConnectAndReadAnniversaryDates(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "1999-10-10")
	b := s.createMember("현우", "")
	coupleID := s.connect(a, b, "2020-01-10")

	rec := s.do("GET", "/api/couples/me", b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"id":%d`, coupleID))

	dates := decodeDates(t, s.do("GET", fmt.Sprintf("/api/couples/%d/anniversaries/dates?year=2021&month=1", coupleID), a, nil))
	assert.Equal(t, []string{"2021-01-10"}, dates)

	dates = decodeDates(t, s.do("GET", fmt.Sprintf("/api/couples/%d/anniversaries/dates?year=2020&month=10", coupleID), b, nil))
	assert.Equal(t, []string{"2020-10-10"}, dates)

	rec = s.do("GET", fmt.Sprintf("/api/couples/%d/anniversaries?year=2020&month=4&day=18", coupleID), a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "만난지 100일")

	rec = s.do("GET", fmt.Sprintf("/api/couples/%d/anniversaries/coming?size=2", coupleID), a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var coming []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coming))
	assert.Len(t, coming, 2)
}

func TestConnectErrors(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	c := s.createMember("서연", "")

	rec := s.do("POST", "/api/couples", a, map[string]any{"partner_id": a, "first_date": "2020-01-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/couples", a, map[string]any{"partner_id": b, "first_date": "2020/01/10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.connect(a, b, "2020-01-10")
	rec = s.do("POST", "/api/couples", c, map[string]any{"partner_id": a, "first_date": "2020-01-10"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("GET", "/api/couples/me", c, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnniversaryPermission(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	c := s.createMember("서연", "")
	d := s.createMember("지훈", "")
	coupleID := s.connect(a, b, "2020-01-10")
	s.connect(c, d, "2021-05-05")

	rec := s.do("GET", fmt.Sprintf("/api/couples/%d/anniversaries/dates", coupleID), c, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("POST", fmt.Sprintf("/api/couples/%d/anniversaries", coupleID), c, map[string]any{
		"title": "첫 여행", "date": "2022-08-01", "repeat_rule": "YEAR",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAnniversary(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	coupleID := s.connect(a, b, "2020-01-10")

	rec := s.do("POST", fmt.Sprintf("/api/couples/%d/anniversaries", coupleID), a, map[string]any{
		"title": "첫 여행", "date": "2023-05-05", "repeat_rule": "YEAR",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Records int `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 27, created.Records)

	rec = s.do("POST", fmt.Sprintf("/api/couples/%d/anniversaries", coupleID), a, map[string]any{
		"title": "x", "date": "2023-05-05",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", fmt.Sprintf("/api/couples/%d/anniversaries", coupleID), a, map[string]any{
		"title": "첫 여행", "date": "2023-05-05", "repeat_rule": "FORTNIGHTLY",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleLifecycle(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	c := s.createMember("서연", "")
	s.connect(a, b, "2020-01-10")

	base := fmt.Sprintf("/api/members/%d/schedules", a)
	rec := s.do("POST", base, a, map[string]any{
		"title":           "운동",
		"start_time":      "2024-03-30T10:00:00+09:00",
		"end_time":        "2024-03-30T11:00:00+09:00",
		"repeat_rule":     "D",
		"repeat_end_date": "2024-04-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Records   int    `json:"records"`
		RepeatEnd string `json:"repeat_end"`
		RRule     string `json:"rrule"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 3, created.Records)
	assert.Equal(t, "2024-04-01", created.RepeatEnd)
	assert.True(t, strings.HasPrefix(created.RRule, "FREQ=DAILY"), created.RRule)

	// The partner may read, strangers may not.
	dates := decodeDates(t, s.do("GET", base+"/dates?year=2024&month=3", b, nil))
	assert.Equal(t, []string{"2024-03-30", "2024-03-31"}, dates)
	dates = decodeDates(t, s.do("GET", base+"/dates?year=2024&month=4", a, nil))
	assert.Equal(t, []string{"2024-04-01"}, dates)
	rec = s.do("GET", base+"/dates?year=2024&month=3", c, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do("GET", base+"/dates?month=13", a, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("GET", base+"?year=2024&month=3&day=31", a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day, 1)

	// Only the owner edits.
	update := map[string]any{
		"title":      "요가",
		"start_time": "2024-03-31T18:00:00+09:00",
		"end_time":   "2024-03-31T19:00:00+09:00",
	}
	rec = s.do("PUT", fmt.Sprintf("%s/%d", base, day[0].ID), b, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do("PUT", fmt.Sprintf("%s/%d", base, day[0].ID), a, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "요가")

	rec = s.do("DELETE", fmt.Sprintf("%s/%d?delete_repeat=true", base, day[0].ID), a, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	dates = decodeDates(t, s.do("GET", base+"/dates?year=2024", a, nil))
	assert.Empty(t, dates)
}

func TestCreateScheduleValidation(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	base := fmt.Sprintf("/api/members/%d/schedules", a)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"repeat without end", map[string]any{
			"title": "운동", "start_time": "2024-03-30T10:00:00+09:00", "end_time": "2024-03-30T11:00:00+09:00", "repeat_rule": "W",
		}},
		{"end before start", map[string]any{
			"title": "운동", "start_time": "2024-03-30T10:00:00+09:00", "end_time": "2024-03-30T09:00:00+09:00",
		}},
		{"bad time format", map[string]any{
			"title": "운동", "start_time": "2024-03-30 10:00", "end_time": "2024-03-30T11:00:00+09:00",
		}},
		{"anniversary rule", map[string]any{
			"title": "운동", "start_time": "2024-03-30T10:00:00+09:00", "end_time": "2024-03-30T11:00:00+09:00",
			"repeat_rule": "HUNDRED_DAYS", "repeat_end_date": "2024-12-31",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do("POST", base, a, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestDatings(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	coupleID := s.connect(a, b, "2020-01-10")
	base := fmt.Sprintf("/api/couples/%d/datings", coupleID)

	rec := s.do("POST", base, a, map[string]any{
		"title":      "영화",
		"location":   "성수",
		"start_time": "2024-06-01T22:00:00+09:00",
		"end_time":   "2024-06-02T01:00:00+09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))

	dates := decodeDates(t, s.do("GET", base+"/dates?year=2024&month=6", b, nil))
	assert.Equal(t, []string{"2024-06-01", "2024-06-02"}, dates)

	rec = s.do("DELETE", fmt.Sprintf("%s/%d", base, d.ID), b, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do("DELETE", fmt.Sprintf("%s/%d", base, d.ID), b, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarExport(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	s.connect(a, b, "2020-01-10")

	rec := s.do("POST", fmt.Sprintf("/api/members/%d/schedules", a), a, map[string]any{
		"title":      "운동",
		"start_time": "2024-03-30T10:00:00+09:00",
		"end_time":   "2024-03-30T11:00:00+09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("GET", fmt.Sprintf("/api/members/%d/calendar.ics", a), b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "운동")
	assert.Contains(t, body, "만난지 100일")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")
	s.connect(a, b, "2020-01-10")

	rec := s.do("GET", "/metrics", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dateplan_materialized_records_total")
	assert.Contains(t, rec.Body.String(), "dateplan_http_request_duration_seconds")
}

func TestPushRoutesDisabledWithoutKeys(t *testing.T) {
	s := newTestServer(t)
	a := s.createMember("민지", "")

	rec := s.do("GET", "/api/push/vapid-key", a, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushSubscriptions(t *testing.T) {
	s := newTestServerWith(t, func(o *Options) {
		o.Push = &push.Config{VAPIDPublicKey: "test-public-key", VAPIDPrivateKey: "test-private-key"}
		o.Reminder = &reminder.Config{Cron: "0 9 * * *", DaysAhead: 3, Location: o.Location}
	})
	a := s.createMember("민지", "")
	b := s.createMember("현우", "")

	rec := s.do("GET", "/api/push/vapid-key", a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-public-key")

	rec = s.do("POST", "/api/push/subscriptions", a, map[string]string{"endpoint": "https://push.example/1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/push/subscriptions", a, map[string]string{
		"endpoint": "https://push.example/1", "p256dh": "key", "auth": "secret", "device_name": "phone",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))

	rec = s.do("GET", "/api/push/subscriptions", a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://push.example/1")

	rec = s.do("GET", "/api/push/subscriptions", b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	path := fmt.Sprintf("/api/push/subscriptions/%d", sub.ID)
	rec = s.do("DELETE", path, b, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do("DELETE", path, a, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
