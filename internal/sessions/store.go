package sessions

import "context"

// Reader is the read surface shared by the store and its transactions.
type Reader interface {
	GetSession(ctx context.Context, id int64) (*Session, error)
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]User, error)
	// ListBookings returns the session's bookings ordered by queue position.
	ListBookings(ctx context.Context, sessionID int64) ([]Booking, error)
}

// Tx is the unit of work a mutation runs in. Lock* methods hold the row until
// the transaction ends.
type Tx interface {
	Reader
	LockSession(ctx context.Context, id int64) (*Session, error)
	LockBooking(ctx context.Context, id int64) (*Booking, error)
	LockDoctor(ctx context.Context, doctorID int64) error
	// OngoingSessionFor reports another ongoing session of the doctor, if any.
	OngoingSessionFor(ctx context.Context, doctorID, excludeSessionID int64) (int64, bool, error)
	InsertSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBookingStatus(ctx context.Context, b *Booking) error
}

// Store persists users, sessions, and bookings.
type Store interface {
	Reader
	// InTx runs fn atomically. Any error from fn rolls the work back.
	InTx(ctx context.Context, fn func(Tx) error) error
}
