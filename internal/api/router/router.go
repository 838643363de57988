package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-session-sync/internal/chat"
	"github.com/wolfman30/clinic-session-sync/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-session-sync/internal/http/middleware"
	"github.com/wolfman30/clinic-session-sync/internal/realtime"
	"github.com/wolfman30/clinic-session-sync/internal/sessions"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Sessions       *sessions.Handler
	Chat           *chat.Handler
	Realtime       *realtime.Handler
	DoctorSessions *handlers.DoctorSessionsHandler // nil without a SQL database
	MetricsHandler http.Handler

	AuthSecret  string
	Origins     *httpmiddleware.OriginPolicy
	RateLimiter *httpmiddleware.RateLimiter

	// Readiness checks backing services for /health. Optional.
	Readiness func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Origins != nil {
		r.Use(httpmiddleware.CORS(cfg.Origins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Readiness))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.Authenticate(cfg.AuthSecret))

		// The upgrade must see the raw writer, so /ws skips compression and
		// rate limiting.
		if cfg.Realtime != nil {
			authed.Get("/ws", cfg.Realtime.ServeWS)
		}

		authed.Group(func(api chi.Router) {
			api.Use(middleware.Compress(5))
			if cfg.RateLimiter != nil {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			if cfg.Sessions != nil {
				cfg.Sessions.Register(api)
			}
			if cfg.Chat != nil {
				cfg.Chat.Register(api)
			}
			if cfg.DoctorSessions != nil {
				api.Get("/doctors/{doctorID}/sessions", cfg.DoctorSessions.ListSessions)
			}
		})
	})

	return r
}

func healthHandler(readiness func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if readiness != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := readiness(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
