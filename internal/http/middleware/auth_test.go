package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/internal/identity"
)

func signed(t *testing.T, secret string, userID int64, ttl time.Duration) string {
	t.Helper()
	tok, err := SignCallerToken(secret, userID, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	require.NoError(t, err)
	return tok
}

func TestAuthenticate(t *testing.T) {
	var gotCaller int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = identity.CallerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		secret string
		setup  func(r *http.Request)
		status int
		caller int64
	}{
		{name: "disabled", secret: "", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{name: "missing", secret: "s3cret", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{
			name:   "wrong key",
			secret: "s3cret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, "other", 4, time.Minute))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "expired",
			secret: "s3cret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", 4, -time.Minute))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "header",
			secret: "s3cret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", 4, time.Minute))
			},
			status: http.StatusOK,
			caller: 4,
		},
		{
			name:   "query param",
			secret: "s3cret",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", signed(t, "s3cret", 9, time.Minute))
				r.URL.RawQuery = q.Encode()
			},
			status: http.StatusOK,
			caller: 9,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotCaller = 0
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			Authenticate(tc.secret)(next).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.caller, gotCaller)
		})
	}
}

func TestParseCallerTokenRejectsNonNumericSubject(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin-user"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ParseCallerToken("k", tok)
	assert.Error(t, err)
}
