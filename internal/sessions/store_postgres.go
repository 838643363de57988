package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const oneOngoingConstraint = "sessions_one_ongoing_per_doctor"

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is satisfied by *pgxpool.Pool and pgxmock pools.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	*pgQueries
	pool PgxPool
}

// NewPostgresStore wires the store to a pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("sessions: pgx pool required")
	}
	return &PostgresStore{pgQueries: &pgQueries{db: pool}, pool: pool}
}

// InTx runs fn inside a database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sessions: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(fmt.Errorf("sessions: commit: %w", err))
	}
	return nil
}

type pgQueries struct {
	db Querier
}

const sessionColumns = `id, doctor_id, starts_at, ends_at, capacity, fee_cents, description, canceled, ongoing, completed, created_at`

const bookingColumns = `id, session_id, patient_id, booked_at, position_in_queue, completed, on_going`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartsAt,
		&s.EndsAt,
		&s.Capacity,
		&s.FeeCents,
		&s.Description,
		&s.Canceled,
		&s.Ongoing,
		&s.Completed,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID,
		&b.SessionID,
		&b.PatientID,
		&b.BookedAt,
		&b.PositionInQueue,
		&b.Completed,
		&b.OnGoing,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *pgQueries) getSession(ctx context.Context, id int64, lock bool) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	s, err := scanSession(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("sessions: select session: %w", err)
	}
	return s, nil
}

func (q *pgQueries) GetSession(ctx context.Context, id int64) (*Session, error) {
	return q.getSession(ctx, id, false)
}

func (q *pgQueries) LockSession(ctx context.Context, id int64) (*Session, error) {
	return q.getSession(ctx, id, true)
}

func (q *pgQueries) getBooking(ctx context.Context, id int64, lock bool) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("sessions: select booking: %w", err)
	}
	return b, nil
}

func (q *pgQueries) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	return q.getBooking(ctx, id, false)
}

func (q *pgQueries) LockBooking(ctx context.Context, id int64) (*Booking, error) {
	return q.getBooking(ctx, id, true)
}

func (q *pgQueries) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, first_name, last_name, email, contact_numbers, role
		FROM users
		WHERE id = $1
	`
	var u User
	var role string
	if err := q.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.ContactNumbers,
		&role,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("sessions: select user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

func (q *pgQueries) GetUsers(ctx context.Context, ids []int64) (map[int64]User, error) {
	out := make(map[int64]User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT id, first_name, last_name, email, contact_numbers, role
		FROM users
		WHERE id = ANY($1)
	`
	rows, err := q.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("sessions: select users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.ContactNumbers, &role); err != nil {
			return nil, fmt.Errorf("sessions: scan user: %w", err)
		}
		u.Role = Role(role)
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: iterate users: %w", err)
	}
	return out, nil
}

func (q *pgQueries) ListBookings(ctx context.Context, sessionID int64) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE session_id = $1 ORDER BY position_in_queue ASC`
	rows, err := q.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessions: select bookings: %w", err)
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("sessions: scan booking: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: iterate bookings: %w", err)
	}
	return out, nil
}

// LockDoctor serializes ongoing-state changes for one doctor.
func (q *pgQueries) LockDoctor(ctx context.Context, doctorID int64) error {
	var id int64
	err := q.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, doctorID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidDoctor
		}
		return fmt.Errorf("sessions: lock doctor: %w", err)
	}
	return nil
}

func (q *pgQueries) OngoingSessionFor(ctx context.Context, doctorID, excludeSessionID int64) (int64, bool, error) {
	query := `
		SELECT id FROM sessions
		WHERE doctor_id = $1 AND ongoing AND id <> $2
		LIMIT 1
	`
	var id int64
	if err := q.db.QueryRow(ctx, query, doctorID, excludeSessionID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("sessions: select ongoing: %w", err)
	}
	return id, true, nil
}

func (q *pgQueries) InsertSession(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (doctor_id, starts_at, ends_at, capacity, fee_cents, description, canceled, ongoing, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	if err := q.db.QueryRow(ctx, query,
		s.DoctorID,
		s.StartsAt,
		s.EndsAt,
		s.Capacity,
		s.FeeCents,
		s.Description,
		s.Canceled,
		s.Ongoing,
		s.Completed,
	).Scan(&s.ID, &s.CreatedAt); err != nil {
		return mapWriteError(fmt.Errorf("sessions: insert session: %w", err))
	}
	return nil
}

func (q *pgQueries) UpdateSession(ctx context.Context, s *Session) error {
	query := `
		UPDATE sessions
		SET doctor_id = $2, starts_at = $3, ends_at = $4, capacity = $5, fee_cents = $6,
			description = $7, canceled = $8, ongoing = $9, completed = $10
		WHERE id = $1
	`
	tag, err := q.db.Exec(ctx, query,
		s.ID,
		s.DoctorID,
		s.StartsAt,
		s.EndsAt,
		s.Capacity,
		s.FeeCents,
		s.Description,
		s.Canceled,
		s.Ongoing,
		s.Completed,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("sessions: update session: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (q *pgQueries) InsertBooking(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (session_id, patient_id, position_in_queue, completed, on_going)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, booked_at
	`
	if err := q.db.QueryRow(ctx, query,
		b.SessionID,
		b.PatientID,
		b.PositionInQueue,
		b.Completed,
		b.OnGoing,
	).Scan(&b.ID, &b.BookedAt); err != nil {
		return mapWriteError(fmt.Errorf("sessions: insert booking: %w", err))
	}
	return nil
}

func (q *pgQueries) UpdateBookingStatus(ctx context.Context, b *Booking) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE bookings SET completed = $2, on_going = $3 WHERE id = $1`,
		b.ID, b.Completed, b.OnGoing,
	)
	if err != nil {
		return fmt.Errorf("sessions: update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// mapWriteError turns constraint violations that guard business rules into
// their domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case oneOngoingConstraint:
			return ErrAnotherSessionOngoing
		case "bookings_session_patient_key":
			return ErrAlreadyBooked
		case "bookings_session_position_key":
			return ErrQueuePositionTaken
		}
	case "23503":
		if pgErr.ConstraintName == "sessions_doctor_id_fkey" {
			return ErrInvalidDoctor
		}
	}
	return err
}
