package sessions

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/internal/http/respond"
	"github.com/wolfman30/clinic-session-sync/internal/identity"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Handler exposes the session operations over HTTP.
type Handler struct {
	service   *Service
	projector *Projector
	logger    *logging.Logger
}

func NewHandler(service *Service, projector *Projector, logger *logging.Logger) *Handler {
	if service == nil || projector == nil {
		panic("sessions: service and projector required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, projector: projector, logger: logger}
}

// Register mounts the routes on r. Callers must be authenticated upstream.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.AddSession)
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Put("/sessions/{sessionID}", h.EditSession)
	r.Post("/sessions/{sessionID}/cancel", h.CancelSession)
	r.Post("/sessions/{sessionID}/start", h.StartSession)
	r.Post("/sessions/{sessionID}/complete", h.CompleteSession)
	r.Post("/sessions/{sessionID}/bookings", h.CreateBooking)
	r.Post("/bookings/{bookingID}/ongoing", h.MarkBookingOngoing)
	r.Post("/bookings/{bookingID}/complete", h.MarkBookingCompleted)
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.ErrInvalidInput, "Invalid "+key+".")
	}
	return id, nil
}

func decodeInput(r *http.Request) (SessionInput, error) {
	var in SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, apperr.New(apperr.ErrInvalidInput, "Invalid request body.")
	}
	return in, nil
}

// callerID is set by the auth middleware; a missing caller is a wiring bug
// surfaced as 401.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	id, err := pathID(r, "sessionID")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	snap, err := h.projector.Project(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, snap)
}

func (h *Handler) AddSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	session, err := h.service.AddSession(r.Context(), caller, in)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, session)
}

func (h *Handler) EditSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "sessionID")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	session, err := h.service.EditSession(r.Context(), caller, id, in)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, session)
}

type sessionAction func(h *Handler, r *http.Request, caller, id int64) error

func (h *Handler) runSessionAction(w http.ResponseWriter, r *http.Request, key string, action sessionAction) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, key)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := action(h, r, caller, id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.runSessionAction(w, r, "sessionID", func(h *Handler, r *http.Request, caller, id int64) error {
		return h.service.CancelSession(r.Context(), caller, id)
	})
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	h.runSessionAction(w, r, "sessionID", func(h *Handler, r *http.Request, caller, id int64) error {
		return h.service.SetSessionOngoing(r.Context(), caller, id)
	})
}

func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	h.runSessionAction(w, r, "sessionID", func(h *Handler, r *http.Request, caller, id int64) error {
		return h.service.MarkSessionAsCompleted(r.Context(), caller, id)
	})
}

func (h *Handler) MarkBookingOngoing(w http.ResponseWriter, r *http.Request) {
	h.runSessionAction(w, r, "bookingID", func(h *Handler, r *http.Request, caller, id int64) error {
		return h.service.MarkBookingAsOngoing(r.Context(), caller, id)
	})
}

func (h *Handler) MarkBookingCompleted(w http.ResponseWriter, r *http.Request) {
	h.runSessionAction(w, r, "bookingID", func(h *Handler, r *http.Request, caller, id int64) error {
		return h.service.MarkBookingAsCompleted(r.Context(), caller, id)
	})
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "sessionID")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	booking, err := h.service.CreateBooking(r.Context(), caller, id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, booking)
}
