package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/internal/identity"
	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Client -> server command types.
const (
	CmdJoinSession       = "joinSession"
	CmdLeaveSession      = "leaveSession"
	CmdJoinConversation  = "joinConversation"
	CmdLeaveConversation = "leaveConversation"
	CmdSendMessage       = "sendMessage"
	CmdPing              = "ping"
)

// Command is what a connected client sends.
type Command struct {
	Type           string `json:"type"`
	SessionID      int64  `json:"sessionId,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Text           string `json:"text,omitempty"`
}

// ErrorPayload is pushed back when a command fails.
type ErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

// ConversationService is the chat side consumed by the transport. It lives
// behind an interface so chat can publish through this package.
type ConversationService interface {
	CanAccessConversation(ctx context.Context, callerID, conversationID int64) error
	SendMessage(ctx context.Context, callerID, conversationID int64, text string) error
}

// SessionAccess decides who may join a session group. Snapshots carry patient
// contact details, so joins are checked when it is set.
type SessionAccess interface {
	CanObserveSession(ctx context.Context, callerID, sessionID int64) error
}

// HandlerOptions tunes the WebSocket transport.
type HandlerOptions struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	CheckOrigin     func(r *http.Request) bool
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
	return o
}

// Handler upgrades authenticated requests and serves the command loop.
type Handler struct {
	hub      *Hub
	chat     ConversationService
	access   SessionAccess
	opts     HandlerOptions
	upgrader websocket.Upgrader
	logger   *logging.Logger
	metrics  *metrics.RealtimeMetrics
}

// NewHandler creates the WebSocket handler. chat may be nil, in which case
// conversation commands are rejected.
func NewHandler(hub *Hub, chat ConversationService, opts HandlerOptions, logger *logging.Logger, m *metrics.RealtimeMetrics) *Handler {
	if hub == nil {
		panic("realtime: hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts = opts.withDefaults()
	return &Handler{
		hub:  hub,
		chat: chat,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 4,
			CheckOrigin:     opts.CheckOrigin,
		},
		logger:  logger,
		metrics: m,
	}
}

// SetSessionAccess installs the joinSession check.
func (h *Handler) SetSessionAccess(a SessionAccess) {
	h.access = a
}

// ServeWS handles GET /ws. The caller must already be authenticated.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime: websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(callerID, h.opts.SendBuffer)
	h.hub.Registry().Join(UserTopic(callerID), client)
	h.metrics.ConnectionOpened()
	h.logger.Info("realtime: client connected", "client_id", client.ID, "user_id", callerID)

	defer func() {
		topics := h.hub.Registry().Remove(client)
		client.Close()
		h.metrics.ConnectionClosed()
		h.logger.Info("realtime: client disconnected",
			"client_id", client.ID,
			"user_id", callerID,
			"groups_left", len(topics),
		)
	}()

	go h.writePump(conn, client)
	h.readPump(r.Context(), conn, client)
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer conn.Close()

	conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("realtime: read error", "client_id", client.ID, "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(client, EventError, ErrorPayload{Message: "malformed command"})
			continue
		}
		if err := h.HandleCommand(ctx, client, cmd); err != nil {
			h.reply(client, EventError, ErrorPayload{Command: cmd.Type, Message: apperr.Message(err)})
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	pingPeriod := (h.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("realtime: write failed", "client_id", client.ID, "error", err)
				client.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}

// HandleCommand applies one inbound command for client. Joining a group does
// not push a snapshot; clients read current state over HTTP first.
func (h *Handler) HandleCommand(ctx context.Context, client *Client, cmd Command) error {
	registry := h.hub.Registry()
	switch cmd.Type {
	case CmdJoinSession:
		if cmd.SessionID <= 0 {
			return apperr.New(apperr.ErrInvalidInput, "sessionId is required")
		}
		if h.access != nil {
			if err := h.access.CanObserveSession(ctx, client.UserID, cmd.SessionID); err != nil {
				return err
			}
		}
		registry.Join(SessionTopic(cmd.SessionID), client)
	case CmdLeaveSession:
		registry.Leave(SessionTopic(cmd.SessionID), client)
	case CmdJoinConversation:
		if err := h.checkConversation(ctx, client, cmd.ConversationID); err != nil {
			return err
		}
		registry.Join(ConversationTopic(cmd.ConversationID), client)
	case CmdLeaveConversation:
		registry.Leave(ConversationTopic(cmd.ConversationID), client)
	case CmdSendMessage:
		if h.chat == nil {
			return apperr.New(apperr.ErrInvalidInput, "chat is not available")
		}
		return h.chat.SendMessage(ctx, client.UserID, cmd.ConversationID, cmd.Text)
	case CmdPing:
		h.reply(client, EventPong, nil)
	default:
		return apperr.New(apperr.ErrInvalidInput, "unknown command "+cmd.Type)
	}
	return nil
}

func (h *Handler) checkConversation(ctx context.Context, client *Client, conversationID int64) error {
	if conversationID <= 0 {
		return apperr.New(apperr.ErrInvalidInput, "conversationId is required")
	}
	if h.chat == nil {
		return apperr.New(apperr.ErrInvalidInput, "chat is not available")
	}
	return h.chat.CanAccessConversation(ctx, client.UserID, conversationID)
}

func (h *Handler) reply(client *Client, event string, payload any) {
	data, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("realtime: encode reply failed", "error", err)
		return
	}
	if err := client.Enqueue(data); err != nil && !errors.Is(err, ErrClientClosed) {
		h.logger.Warn("realtime: reply dropped", "client_id", client.ID, "error", err)
	}
}
