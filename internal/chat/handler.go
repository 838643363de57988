package chat

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

// Handler serves conversation history and the HTTP send fallback.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("chat: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/conversations/{conversationID}/messages", h.ListMessages)
	r.Post("/conversations/{conversationID}/messages", h.PostMessage)
}

func conversationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.ErrInvalidInput, "Invalid conversationID.")
	}
	return id, nil
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := conversationID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			respond.Error(w, h.logger, apperr.New(apperr.ErrInvalidInput, "Invalid limit."))
			return
		}
	}
	msgs, err := h.service.History(r.Context(), caller, id, limit)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := conversationID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.logger, apperr.New(apperr.ErrInvalidInput, "Invalid request body."))
		return
	}
	msg, err := h.service.Send(r.Context(), caller, id, req.Text)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, msg)
}
