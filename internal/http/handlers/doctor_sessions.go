package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/internal/http/respond"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// DoctorSessionsHandler serves the doctor dashboard list of a day's sessions.
type DoctorSessionsHandler struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

// NewDoctorSessionsHandler builds the handler. Days are cut in loc.
func NewDoctorSessionsHandler(db *sql.DB, loc *time.Location, logger *logging.Logger) *DoctorSessionsHandler {
	if db == nil {
		panic("handlers: sql db required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorSessionsHandler{db: db, loc: loc, now: time.Now, logger: logger}
}

// SessionSummary is one row of the dashboard.
type SessionSummary struct {
	ID          int64     `json:"id"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Capacity    int       `json:"capacity"`
	FeeCents    int64     `json:"feeCents"`
	Description string    `json:"description"`
	Canceled    bool      `json:"canceled"`
	Ongoing     bool      `json:"ongoing"`
	Completed   bool      `json:"completed"`
	Booked      int       `json:"booked"`
	Remaining   int       `json:"remaining"`
}

// DoctorDay is the response of ListSessions.
type DoctorDay struct {
	DoctorID int64            `json:"doctorId"`
	Date     string           `json:"date"`
	Sessions []SessionSummary `json:"sessions"`
}

const doctorDayQuery = `
	SELECT s.id, s.starts_at, s.ends_at, s.capacity, s.fee_cents, s.description,
		s.canceled, s.ongoing, s.completed, COUNT(b.id) AS booked
	FROM sessions s
	LEFT JOIN bookings b ON b.session_id = s.id
	WHERE s.doctor_id = $1 AND s.starts_at >= $2 AND s.starts_at < $3
	GROUP BY s.id
	ORDER BY s.starts_at ASC`

// ListSessions handles GET /doctors/{doctorID}/sessions?date=YYYY-MM-DD.
// The date defaults to today.
func (h *DoctorSessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || doctorID <= 0 {
		respond.Error(w, h.logger, apperr.New(apperr.ErrInvalidInput, "Invalid doctorID."))
		return
	}

	day := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			respond.Error(w, h.logger, apperr.New(apperr.ErrInvalidInput, "Invalid date, expected YYYY-MM-DD."))
			return
		}
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, h.loc)
	to := from.AddDate(0, 0, 1)

	rows, err := h.db.QueryContext(r.Context(), doctorDayQuery, doctorID, from, to)
	if err != nil {
		h.logger.Error("doctor sessions query failed", "doctor_id", doctorID, "error", err)
		respond.Message(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer rows.Close()

	out := DoctorDay{DoctorID: doctorID, Date: from.Format("2006-01-02"), Sessions: []SessionSummary{}}
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(
			&s.ID,
			&s.StartsAt,
			&s.EndsAt,
			&s.Capacity,
			&s.FeeCents,
			&s.Description,
			&s.Canceled,
			&s.Ongoing,
			&s.Completed,
			&s.Booked,
		); err != nil {
			h.logger.Error("doctor sessions scan failed", "doctor_id", doctorID, "error", err)
			respond.Message(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.StartTime = s.StartsAt.In(h.loc).Format("15:04")
		s.EndTime = s.EndsAt.In(h.loc).Format("15:04")
		if s.Remaining = s.Capacity - s.Booked; s.Remaining < 0 {
			s.Remaining = 0
		}
		out.Sessions = append(out.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("doctor sessions iterate failed", "doctor_id", doctorID, "error", err)
		respond.Message(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, out)
}
