package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memState struct {
	users         map[int64]User
	sessions      map[int64]Session
	bookings      map[int64]Booking
	nextSessionID int64
	nextBookingID int64
	nextUserID    int64
}

func (s memState) clone() memState {
	out := memState{
		users:         make(map[int64]User, len(s.users)),
		sessions:      make(map[int64]Session, len(s.sessions)),
		bookings:      make(map[int64]Booking, len(s.bookings)),
		nextSessionID: s.nextSessionID,
		nextBookingID: s.nextBookingID,
		nextUserID:    s.nextUserID,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	return out
}

// MemoryStore is an in-process Store for development and tests. Transactions
// hold the write lock for their whole duration and apply a copy on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			users:    make(map[int64]User),
			sessions: make(map[int64]Session),
			bookings: make(map[int64]Booking),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AddUser stores u, assigning an ID when it has none.
func (m *MemoryStore) AddUser(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.state.nextUserID++
		u.ID = m.state.nextUserID
	} else if u.ID > m.state.nextUserID {
		m.state.nextUserID = u.ID
	}
	u.ContactNumbers = append([]string(nil), u.ContactNumbers...)
	m.state.users[u.ID] = u
	return u
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{state: &work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) reader() *memTx {
	return &memTx{state: &m.state, now: m.now}
}

func (m *MemoryStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetSession(ctx, id)
}

func (m *MemoryStore) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetBooking(ctx, id)
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetUser(ctx, id)
}

func (m *MemoryStore) GetUsers(ctx context.Context, ids []int64) (map[int64]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().GetUsers(ctx, ids)
}

func (m *MemoryStore) ListBookings(ctx context.Context, sessionID int64) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader().ListBookings(ctx, sessionID)
}

// memTx works on a private copy of the state while the store's lock is held,
// so row locks are implicit.
type memTx struct {
	state *memState
	now   func() time.Time
}

func copyUser(u User) *User {
	u.ContactNumbers = append([]string(nil), u.ContactNumbers...)
	return &u
}

func (t *memTx) GetSession(_ context.Context, id int64) (*Session, error) {
	s, ok := t.state.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (t *memTx) GetBooking(_ context.Context, id int64) (*Booking, error) {
	b, ok := t.state.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (t *memTx) GetUser(_ context.Context, id int64) (*User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (t *memTx) GetUsers(_ context.Context, ids []int64) (map[int64]User, error) {
	out := make(map[int64]User, len(ids))
	for _, id := range ids {
		if u, ok := t.state.users[id]; ok {
			out[id] = *copyUser(u)
		}
	}
	return out, nil
}

func (t *memTx) ListBookings(_ context.Context, sessionID int64) ([]Booking, error) {
	var out []Booking
	for _, b := range t.state.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PositionInQueue < out[j].PositionInQueue
	})
	return out, nil
}

func (t *memTx) LockSession(ctx context.Context, id int64) (*Session, error) {
	return t.GetSession(ctx, id)
}

func (t *memTx) LockBooking(ctx context.Context, id int64) (*Booking, error) {
	return t.GetBooking(ctx, id)
}

func (t *memTx) LockDoctor(_ context.Context, doctorID int64) error {
	if _, ok := t.state.users[doctorID]; !ok {
		return ErrInvalidDoctor
	}
	return nil
}

func (t *memTx) OngoingSessionFor(_ context.Context, doctorID, excludeSessionID int64) (int64, bool, error) {
	for _, s := range t.state.sessions {
		if s.DoctorID == doctorID && s.Ongoing && s.ID != excludeSessionID {
			return s.ID, true, nil
		}
	}
	return 0, false, nil
}

func (t *memTx) InsertSession(_ context.Context, s *Session) error {
	if _, ok := t.state.users[s.DoctorID]; !ok {
		return ErrInvalidDoctor
	}
	t.state.nextSessionID++
	s.ID = t.state.nextSessionID
	s.CreatedAt = t.now()
	t.state.sessions[s.ID] = *s
	return nil
}

func (t *memTx) UpdateSession(_ context.Context, s *Session) error {
	if _, ok := t.state.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	if s.Ongoing {
		for _, other := range t.state.sessions {
			if other.ID != s.ID && other.DoctorID == s.DoctorID && other.Ongoing {
				return ErrAnotherSessionOngoing
			}
		}
	}
	t.state.sessions[s.ID] = *s
	return nil
}

func (t *memTx) InsertBooking(_ context.Context, b *Booking) error {
	for _, other := range t.state.bookings {
		if other.SessionID != b.SessionID {
			continue
		}
		if other.PatientID == b.PatientID {
			return ErrAlreadyBooked
		}
		if other.PositionInQueue == b.PositionInQueue {
			return ErrQueuePositionTaken
		}
	}
	t.state.nextBookingID++
	b.ID = t.state.nextBookingID
	b.BookedAt = t.now()
	t.state.bookings[b.ID] = *b
	return nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, b *Booking) error {
	cur, ok := t.state.bookings[b.ID]
	if !ok {
		return ErrBookingNotFound
	}
	cur.Completed = b.Completed
	cur.OnGoing = b.OnGoing
	t.state.bookings[b.ID] = cur
	return nil
}
