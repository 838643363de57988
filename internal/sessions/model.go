package sessions

import "time"

// Role is the stored role of a user. It is always read from the store, never
// taken from the request.
type Role string

const (
	RoleDoctor  Role = "Doctor"
	RolePatient Role = "Patient"
	RoleAdmin   Role = "Admin"
)

// User carries the fields the scheduling core needs about a person.
type User struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	ContactNumbers []string
	Role           Role
}

// Status is the session state derived from its stored flags.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusOngoing   Status = "Ongoing"
	StatusCompleted Status = "Completed"
	StatusCanceled  Status = "Canceled"
)

// Session is a time-boxed block in which a doctor sees booked patients.
type Session struct {
	ID          int64     `json:"id"`
	DoctorID    int64     `json:"doctorId"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Capacity    int       `json:"capacity"`
	FeeCents    int64     `json:"feeCents"`
	Description string    `json:"description"`
	Canceled    bool      `json:"canceled"`
	Ongoing     bool      `json:"ongoing"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Status collapses the flags; canceled wins over everything else.
func (s Session) Status() Status {
	switch {
	case s.Canceled:
		return StatusCanceled
	case s.Completed:
		return StatusCompleted
	case s.Ongoing:
		return StatusOngoing
	default:
		return StatusScheduled
	}
}

// Booking is a patient's place in a session's queue. OnGoing and Completed are
// independent flags.
type Booking struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"sessionId"`
	PatientID       int64     `json:"patientId"`
	BookedAt        time.Time `json:"bookedAt"`
	PositionInQueue int       `json:"positionInQueue"`
	Completed       bool      `json:"completed"`
	OnGoing         bool      `json:"onGoing"`
}

// SessionInput holds the mutable fields for AddSession and EditSession.
type SessionInput struct {
	DoctorID    int64     `json:"doctorId"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Capacity    int       `json:"capacity"`
	FeeCents    int64     `json:"feeCents"`
	Description string    `json:"description"`
}

// Validate checks the input-only preconditions.
func (in SessionInput) Validate() error {
	if !in.EndsAt.After(in.StartsAt) {
		return ErrInvalidTimeRange
	}
	if in.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if in.FeeCents < 0 {
		return ErrInvalidFee
	}
	return nil
}

// Person is the display projection of a user on the wire.
type Person struct {
	ID             int64    `json:"id"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Email          string   `json:"email"`
	ContactNumbers []string `json:"contactNumbers"`
}

func personFrom(u User) Person {
	numbers := u.ContactNumbers
	if numbers == nil {
		numbers = []string{}
	}
	return Person{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ContactNumbers: numbers,
	}
}

// BookingView is one queue entry in a snapshot.
type BookingView struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"sessionId"`
	PatientID       int64     `json:"patientId"`
	BookedAt        time.Time `json:"bookedAt"`
	PositionInQueue int       `json:"positionInQueue"`
	Completed       bool      `json:"completed"`
	OnGoing         bool      `json:"onGoing"`
	Patient         Person    `json:"patient"`
}

// Snapshot is the full state of one session as pushed in SessionUpdated. It is
// rebuilt from the store for every broadcast and shares nothing with it.
type Snapshot struct {
	ID          int64         `json:"id"`
	DoctorID    int64         `json:"doctorId"`
	Doctor      Person        `json:"doctor"`
	Date        string        `json:"date"`
	StartTime   string        `json:"startTime"`
	EndTime     string        `json:"endTime"`
	StartsAt    time.Time     `json:"startsAt"`
	EndsAt      time.Time     `json:"endsAt"`
	Capacity    int           `json:"capacity"`
	FeeCents    int64         `json:"feeCents"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Canceled    bool          `json:"canceled"`
	Ongoing     bool          `json:"ongoing"`
	Completed   bool          `json:"completed"`
	Bookings    []BookingView `json:"bookings"`
}
