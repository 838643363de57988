package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"

	appconfig "github.com/wolfman30/clinic-session-sync/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-session-sync/internal/http/middleware"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

const testSecret = "test-secret"

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		AuthJWTSecret:       testSecret,
		ClinicTimezone:      "UTC",
		RateLimitRPS:        100,
		RateLimitBurst:      100,
		NotifyEmailProvider: "none",
	}
}

func authed(t *testing.T, req *http.Request, userID int64) *http.Request {
	t.Helper()
	token, err := httpmiddleware.SignCallerToken(testSecret, userID, jwt.RegisteredClaims{})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestBuildAppMemoryModeServesHealthAndMetrics(t *testing.T) {
	app, err := buildApp(context.Background(), testConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors to be exported")
	}
}

func TestBuildAppDoctorCanCreateSession(t *testing.T) {
	app, err := buildApp(context.Background(), testConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer app.Close()

	body := `{"doctorId":2,"startsAt":"2026-03-02T09:00:00Z","endsAt":"2026-03-02T11:00:00Z","capacity":2,"feeCents":5000}`
	req := authed(t, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body)), 2)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success envelope")
	}
}

func TestBuildAppWithRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.RedisChannelPrefix = "test:rt:"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer app.Close()
	if app.hub == nil || app.sessions == nil {
		t.Fatalf("expected hub and session service")
	}
}

func TestBuildAppRejectsUnknownEmailProvider(t *testing.T) {
	cfg := testConfig()
	cfg.NotifyEmailProvider = "fax"
	if _, err := buildApp(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
