package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

var summaryColumns = []string{"id", "starts_at", "ends_at", "capacity", "fee_cents", "description", "canceled", "ongoing", "completed", "booked"}

func doctorRequest(doctorID, query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID+"/sessions"+query, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("doctorID", doctorID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDoctorSessionsListsDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewDoctorSessionsHandler(db, time.UTC, logging.New("error"))
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := from.Add(9 * time.Hour)

	mock.ExpectQuery(`SELECT s.id, s.starts_at`).
		WithArgs(int64(4), from, from.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(int64(1), start, start.Add(time.Hour), 3, int64(5000), "Morning", false, true, false, 2).
			AddRow(int64(2), start.Add(4*time.Hour), start.Add(5*time.Hour), 2, int64(0), "", true, false, false, 0))

	rec := httptest.NewRecorder()
	h.ListSessions(rec, doctorRequest("4", "?date=2026-03-02"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool      `json:"success"`
		Data    DoctorDay `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-03-02", body.Data.Date)
	require.Len(t, body.Data.Sessions, 2)
	assert.Equal(t, "09:00", body.Data.Sessions[0].StartTime)
	assert.Equal(t, 2, body.Data.Sessions[0].Booked)
	assert.Equal(t, 1, body.Data.Sessions[0].Remaining)
	assert.True(t, body.Data.Sessions[1].Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorSessionsDefaultsToToday(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewDoctorSessionsHandler(db, time.UTC, nil)
	h.now = func() time.Time { return time.Date(2026, 5, 1, 15, 4, 0, 0, time.UTC) }
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT s.id, s.starts_at`).
		WithArgs(int64(4), from, from.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows(summaryColumns))

	rec := httptest.NewRecorder()
	h.ListSessions(rec, doctorRequest("4", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions":[]`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorSessionsBadInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewDoctorSessionsHandler(db, time.UTC, nil)

	rec := httptest.NewRecorder()
	h.ListSessions(rec, doctorRequest("abc", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListSessions(rec, doctorRequest("4", "?date=03/02/2026"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoctorSessionsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewDoctorSessionsHandler(db, time.UTC, logging.New("error"))

	mock.ExpectQuery(`SELECT s.id`).WillReturnError(errors.New("connection reset"))

	rec := httptest.NewRecorder()
	h.ListSessions(rec, doctorRequest("4", "?date=2026-03-02"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
