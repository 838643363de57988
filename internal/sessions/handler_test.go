package sessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/internal/identity"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc, f.proj, logging.New("error"))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Test-Caller"); raw != "" {
				id, _ := strconv.ParseInt(raw, 10, 64)
				r = r.WithContext(identity.WithCallerID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, caller int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != 0 {
		req.Header.Set("X-Test-Caller", strconv.FormatInt(caller, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/sessions", f.doctor.ID, sessionInput(f.doctor.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Success bool    `json:"success"`
		Data    Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	id := strconv.FormatInt(created.Data.ID, 10)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/bookings", f.patient.ID, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/start", f.doctor.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/sessions/"+id, f.patient.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Data.Ongoing)
	require.Len(t, got.Data.Bookings, 1)

	bookingID := strconv.FormatInt(got.Data.Bookings[0].ID, 10)
	rec = do(t, h, http.MethodPost, "/bookings/"+bookingID+"/complete", f.admin.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	s := f.seedSession(t, f.doctor.ID)
	id := strconv.FormatInt(s.ID, 10)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/cancel", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/cancel", f.doctor2.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/999/cancel", f.doctor.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/abc/cancel", f.doctor.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := sessionInput(f.doctor.ID)
	bad.EndsAt = bad.StartsAt.Add(-1)
	rec = do(t, h, http.MethodPut, "/sessions/"+id, f.doctor.ID, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	other := f.seedSession(t, f.doctor.ID)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sessions/"+id+"/start", f.doctor.ID, nil).Code)
	rec = do(t, h, http.MethodPost, "/sessions/"+strconv.FormatInt(other.ID, 10)+"/start", f.doctor.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Another session is already ongoing. Please stop the current session before starting a new one."}`, rec.Body.String())
}
