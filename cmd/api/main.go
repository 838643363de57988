package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-session-sync/internal/api/router"
	"github.com/wolfman30/clinic-session-sync/internal/app/bootstrap"
	"github.com/wolfman30/clinic-session-sync/internal/chat"
	appconfig "github.com/wolfman30/clinic-session-sync/internal/config"
	"github.com/wolfman30/clinic-session-sync/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-session-sync/internal/http/middleware"
	"github.com/wolfman30/clinic-session-sync/internal/notify"
	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/internal/realtime"
	"github.com/wolfman30/clinic-session-sync/internal/sessions"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

func main() {
	// Local runs read .env; deployed environments set variables directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-session-sync API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Location().String(),
	)
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler  http.Handler
	hub      *realtime.Hub
	sessions *sessions.Service
	stores   *bootstrap.Stores
	done     chan struct{}
	closers  []func()
}

func (a *application) Close() {
	close(a.done)
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires stores, realtime fan-out, the session services and the
// router. The relay and eviction loops stop with ctx or Close.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{done: make(chan struct{})}

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.stores = stores
	app.closers = append(app.closers, stores.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rtMetrics := metrics.NewRealtimeMetrics(reg)
	sessionMetrics := metrics.NewSessionMetrics(reg)

	hub := realtime.NewHub(realtime.NewRegistry(rtMetrics), logger, rtMetrics)
	app.hub = hub
	var publisher realtime.Publisher = hub
	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		relay := realtime.NewRedisRelay(client, hub, cfg.RedisChannelPrefix, logger)
		if err := relay.Start(ctx); err != nil {
			_ = client.Close()
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		publisher = relay
	}

	loc := cfg.Location()
	projector := sessions.NewProjector(stores.Sessions, loc)
	dispatcher := sessions.NewDispatcher(projector, publisher, logger, sessionMetrics)
	sessionService := sessions.NewService(stores.Sessions, dispatcher, logger, sessionMetrics)
	chatService := chat.NewService(stores.Chat, publisher, logger)

	email, err := bootstrap.BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	notifier := notify.NewSessionNotifier(projector, chatService, email, logger, sessionMetrics)
	notifier.SetEmailTimeout(cfg.NotifyEmailTimeout)
	sessionService.SetNotifier(notifier)
	app.sessions = sessionService

	origins := httpmiddleware.NewOriginPolicy(cfg.CORSAllowedOrigins)
	wsHandler := realtime.NewHandler(hub, chatService, realtime.HandlerOptions{
		SendBuffer:      cfg.WSSendBuffer,
		WriteWait:       cfg.WSWriteWait,
		PongWait:        cfg.WSPongWait,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		CheckOrigin:     origins.CheckOrigin,
	}, logger, rtMetrics)
	wsHandler.SetSessionAccess(sessionService)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(time.Minute, 10*time.Minute, app.done)

	var doctorSessions *handlers.DoctorSessionsHandler
	if stores.SQL != nil {
		doctorSessions = handlers.NewDoctorSessionsHandler(stores.SQL, loc, logger)
	}

	app.handler = router.New(&router.Config{
		Logger:         logger,
		Sessions:       sessions.NewHandler(sessionService, projector, logger),
		Chat:           chat.NewHandler(chatService, logger),
		Realtime:       wsHandler,
		DoctorSessions: doctorSessions,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AuthSecret:     cfg.AuthJWTSecret,
		Origins:        origins,
		RateLimiter:    limiter,
		Readiness:      stores.Ping,
	})
	return app, nil
}
