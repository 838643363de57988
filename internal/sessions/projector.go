package sessions

import (
	"context"
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Projector builds the Snapshot of a session from the store.
type Projector struct {
	store Reader
	loc   *time.Location
}

// NewProjector renders dates and clock times in loc (UTC when nil).
func NewProjector(store Reader, loc *time.Location) *Projector {
	if store == nil {
		panic("sessions: store required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Projector{store: store, loc: loc}
}

// Location is the zone snapshots are rendered in.
func (p *Projector) Location() *time.Location {
	return p.loc
}

// Project returns the current snapshot, or ErrSessionNotFound.
func (p *Projector) Project(ctx context.Context, sessionID int64) (*Snapshot, error) {
	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	bookings, err := p.store.ListBookings(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(bookings)+1)
	ids = append(ids, session.DoctorID)
	for _, b := range bookings {
		ids = append(ids, b.PatientID)
	}
	users, err := p.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sessions: project %d: %w", sessionID, err)
	}

	start := session.StartsAt.In(p.loc)
	end := session.EndsAt.In(p.loc)
	snap := &Snapshot{
		ID:          session.ID,
		DoctorID:    session.DoctorID,
		Doctor:      personOrID(users, session.DoctorID),
		Date:        start.Format(dateLayout),
		StartTime:   start.Format(clockLayout),
		EndTime:     end.Format(clockLayout),
		StartsAt:    session.StartsAt,
		EndsAt:      session.EndsAt,
		Capacity:    session.Capacity,
		FeeCents:    session.FeeCents,
		Description: session.Description,
		Status:      session.Status(),
		Canceled:    session.Canceled,
		Ongoing:     session.Ongoing,
		Completed:   session.Completed,
		Bookings:    make([]BookingView, 0, len(bookings)),
	}
	for _, b := range bookings {
		snap.Bookings = append(snap.Bookings, BookingView{
			ID:              b.ID,
			SessionID:       b.SessionID,
			PatientID:       b.PatientID,
			BookedAt:        b.BookedAt,
			PositionInQueue: b.PositionInQueue,
			Completed:       b.Completed,
			OnGoing:         b.OnGoing,
			Patient:         personOrID(users, b.PatientID),
		})
	}
	return snap, nil
}

func personOrID(users map[int64]User, id int64) Person {
	if u, ok := users[id]; ok {
		return personFrom(u)
	}
	return Person{ID: id, ContactNumbers: []string{}}
}
