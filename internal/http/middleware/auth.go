package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-session-sync/internal/http/respond"
	"github.com/wolfman30/clinic-session-sync/internal/identity"
)

// Authenticate verifies an HMAC-signed JWT whose subject is the numeric user
// id and stores that id as the caller. Browsers cannot set headers on a
// WebSocket upgrade, so the token may also come from ?access_token=.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				respond.Message(w, http.StatusUnauthorized, "auth disabled")
				return
			}
			tokenString := bearerToken(r)
			if tokenString == "" {
				respond.Message(w, http.StatusUnauthorized, "missing authorization token")
				return
			}
			userID, err := ParseCallerToken(secret, tokenString)
			if err != nil {
				respond.Message(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithCallerID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// ParseCallerToken validates tokenString and returns the user id in its subject.
func ParseCallerToken(secret, tokenString string) (int64, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, jwt.ErrTokenSignatureInvalid
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, jwt.ErrTokenInvalidSubject
	}
	return userID, nil
}

// SignCallerToken issues a token for userID. Used by tests and local tooling.
func SignCallerToken(secret string, userID int64, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(userID, 10)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
