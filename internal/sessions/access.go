package sessions

import (
	"context"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
)

var ErrNotSessionMember = apperr.New(apperr.ErrUnauthorized, "Only the session's doctor, its booked patients or an admin can follow this session.")

// CanObserveSession reports whether callerID may follow live updates for a
// session. The role is read from the store, never from the client.
func (s *Service) CanObserveSession(ctx context.Context, callerID, sessionID int64) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	actor, err := caller(ctx, s.store, callerID)
	if err != nil {
		return err
	}
	switch {
	case actor.Role == RoleAdmin, actor.ID == session.DoctorID:
		return nil
	case actor.Role != RolePatient:
		return ErrNotSessionMember
	}

	bookings, err := s.store.ListBookings(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.PatientID == actor.ID {
			return nil
		}
	}
	return ErrNotSessionMember
}
