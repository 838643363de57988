package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
)

func TestCanObserveSession(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, f.doctor.ID)
	f.book(t, s.ID, f.patient.ID)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller int64
		want   error
	}{
		{"admin", f.admin.ID, nil},
		{"owning doctor", f.doctor.ID, nil},
		{"booked patient", f.patient.ID, nil},
		{"other doctor", f.doctor2.ID, apperr.ErrUnauthorized},
		{"unbooked patient", f.patient2.ID, apperr.ErrUnauthorized},
		{"unknown caller", 999, apperr.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.CanObserveSession(ctx, tc.caller, s.ID)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.ErrorIs(t, f.svc.CanObserveSession(ctx, f.admin.ID, 4040), apperr.ErrNotFound)
}
