package sessions

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

var sessionsTracer = otel.Tracer("clinic.internal.sessions")

// StatusKind names a session change patients are told about.
type StatusKind string

const (
	StatusKindCancelled StatusKind = "cancelled"
	StatusKindStarted   StatusKind = "started"
)

// StatusNotifier tells a session's booked patients about a status change.
type StatusNotifier interface {
	NotifySessionStatus(ctx context.Context, sessionID int64, kind StatusKind) error
}

// Service runs the session and booking mutations. Each one commits first, then
// broadcasts the new snapshot; failed mutations never broadcast.
type Service struct {
	store      Store
	dispatcher *Dispatcher
	notifier   StatusNotifier
	logger     *logging.Logger
	metrics    *metrics.SessionMetrics
}

func NewService(store Store, dispatcher *Dispatcher, logger *logging.Logger, m *metrics.SessionMetrics) *Service {
	if store == nil {
		panic("sessions: store required")
	}
	if dispatcher == nil {
		panic("sessions: dispatcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, dispatcher: dispatcher, logger: logger, metrics: m}
}

// SetNotifier installs the status notifier. It is optional.
func (s *Service) SetNotifier(n StatusNotifier) {
	s.notifier = n
}

func (s *Service) startOp(ctx context.Context, op string, callerID int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := sessionsTracer.Start(ctx, "sessions."+op)
	span.SetAttributes(attribute.Int64("clinic.caller_id", callerID))
	span.SetAttributes(attrs...)
	return ctx, span
}

func (s *Service) finishOp(span trace.Span, op string, err error) {
	defer span.End()
	result := "ok"
	if err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	s.metrics.ObserveMutation(op, result)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrInvalidReference),
		errors.Is(err, apperr.ErrInvalidTimeRange),
		errors.Is(err, apperr.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// afterCommit runs the side effects of a committed mutation. It detaches from
// the request so a client hanging up does not cut the broadcast short.
func (s *Service) afterCommit(ctx context.Context, sessionID int64, kind StatusKind) {
	ctx = context.WithoutCancel(ctx)
	_ = s.dispatcher.Broadcast(ctx, sessionID)
	if kind == "" || s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySessionStatus(ctx, sessionID, kind); err != nil {
		s.logger.Warn("session status notification failed", "session_id", sessionID, "kind", string(kind), "error", err)
	}
}

// caller loads the acting user. Unknown callers are unauthorized.
func caller(ctx context.Context, r Reader, callerID int64) (*User, error) {
	if callerID <= 0 {
		return nil, apperr.New(apperr.ErrUnauthorized, "Caller is not authenticated.")
	}
	u, err := r.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrUnauthorized, "Caller is not a known user.")
		}
		return nil, err
	}
	return u, nil
}

// requireDoctor resolves doctorID to a user whose stored role is Doctor.
func requireDoctor(ctx context.Context, r Reader, doctorID int64) (*User, error) {
	if doctorID <= 0 {
		return nil, ErrInvalidDoctor
	}
	u, err := r.GetUser(ctx, doctorID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidDoctor
		}
		return nil, err
	}
	if u.Role != RoleDoctor {
		return nil, ErrInvalidDoctor
	}
	return u, nil
}

// AddSession creates a session for a doctor. Admins may create sessions for
// any doctor; doctors only for themselves.
func (s *Service) AddSession(ctx context.Context, callerID int64, in SessionInput) (_ *Session, err error) {
	ctx, span := s.startOp(ctx, "add_session", callerID, attribute.Int64("clinic.doctor_id", in.DoctorID))
	defer func() { s.finishOp(span, "add_session", err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created Session
	err = s.store.InTx(ctx, func(tx Tx) error {
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		doctor, err := requireDoctor(ctx, tx, in.DoctorID)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && actor.ID != doctor.ID {
			return apperr.New(apperr.ErrUnauthorized, "Only admins or the doctor themselves can add a session.")
		}
		created = Session{
			DoctorID:    doctor.ID,
			StartsAt:    in.StartsAt,
			EndsAt:      in.EndsAt,
			Capacity:    in.Capacity,
			FeeCents:    in.FeeCents,
			Description: in.Description,
		}
		return tx.InsertSession(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session added", "session_id", created.ID, "doctor_id", created.DoctorID)
	s.afterCommit(ctx, created.ID, "")
	return &created, nil
}

// EditSession overwrites a session's fields while it has not started.
func (s *Service) EditSession(ctx context.Context, callerID, sessionID int64, in SessionInput) (_ *Session, err error) {
	ctx, span := s.startOp(ctx, "edit_session", callerID, attribute.Int64("clinic.session_id", sessionID))
	defer func() { s.finishOp(span, "edit_session", err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated Session
	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && actor.ID != current.DoctorID {
			return ErrNotSessionOwner
		}
		if current.Ongoing || current.Completed || current.Canceled {
			return ErrSessionAlreadyStarted
		}
		doctor, err := requireDoctor(ctx, tx, in.DoctorID)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && doctor.ID != actor.ID {
			return apperr.New(apperr.ErrUnauthorized, "Only admins can move a session to another doctor.")
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		if in.Capacity < len(bookings) {
			return ErrCapacityBelowBookings
		}

		updated = *current
		updated.DoctorID = doctor.ID
		updated.StartsAt = in.StartsAt
		updated.EndsAt = in.EndsAt
		updated.Capacity = in.Capacity
		updated.FeeCents = in.FeeCents
		updated.Description = in.Description
		return tx.UpdateSession(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session edited", "session_id", sessionID)
	s.afterCommit(ctx, sessionID, "")
	return &updated, nil
}

// CancelSession cancels a scheduled or ongoing session and notifies its
// patients.
func (s *Service) CancelSession(ctx context.Context, callerID, sessionID int64) (err error) {
	ctx, span := s.startOp(ctx, "cancel_session", callerID, attribute.Int64("clinic.session_id", sessionID))
	defer func() { s.finishOp(span, "cancel_session", err) }()

	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.ID != current.DoctorID {
			return ErrNotSessionOwner
		}
		switch {
		case current.Canceled:
			return ErrSessionAlreadyCanceled
		case current.Completed:
			return ErrSessionCompleted
		}
		current.Canceled = true
		current.Ongoing = false
		return tx.UpdateSession(ctx, current)
	})
	if err != nil {
		return err
	}

	s.logger.Info("session canceled", "session_id", sessionID)
	s.afterCommit(ctx, sessionID, StatusKindCancelled)
	return nil
}

// SetSessionOngoing starts a session. The check that no other session of the
// doctor is ongoing and the write happen under the doctor's row lock.
func (s *Service) SetSessionOngoing(ctx context.Context, callerID, sessionID int64) (err error) {
	ctx, span := s.startOp(ctx, "start_session", callerID, attribute.Int64("clinic.session_id", sessionID))
	defer func() { s.finishOp(span, "start_session", err) }()

	changed := false
	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.ID != current.DoctorID {
			return ErrNotSessionOwner
		}
		switch {
		case current.Canceled:
			return ErrSessionAlreadyCanceled
		case current.Completed:
			return ErrSessionCompleted
		case current.Ongoing:
			return nil
		}
		if err := tx.LockDoctor(ctx, current.DoctorID); err != nil {
			return err
		}
		if _, found, err := tx.OngoingSessionFor(ctx, current.DoctorID, sessionID); err != nil {
			return err
		} else if found {
			return ErrAnotherSessionOngoing
		}
		current.Ongoing = true
		changed = true
		return tx.UpdateSession(ctx, current)
	})
	if err != nil {
		return err
	}

	kind := StatusKind("")
	if changed {
		kind = StatusKindStarted
		s.logger.Info("session started", "session_id", sessionID)
	}
	s.afterCommit(ctx, sessionID, kind)
	return nil
}

// MarkSessionAsCompleted ends a session. Completing twice is a no-op.
func (s *Service) MarkSessionAsCompleted(ctx context.Context, callerID, sessionID int64) (err error) {
	ctx, span := s.startOp(ctx, "complete_session", callerID, attribute.Int64("clinic.session_id", sessionID))
	defer func() { s.finishOp(span, "complete_session", err) }()

	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.ID != current.DoctorID {
			return ErrNotSessionOwner
		}
		if current.Canceled {
			return ErrSessionAlreadyCanceled
		}
		if current.Completed && !current.Ongoing {
			return nil
		}
		current.Ongoing = false
		current.Completed = true
		return tx.UpdateSession(ctx, current)
	})
	if err != nil {
		return err
	}

	s.logger.Info("session completed", "session_id", sessionID)
	s.afterCommit(ctx, sessionID, "")
	return nil
}

// MarkBookingAsOngoing flags the booking currently being seen. Only the
// session's doctor may do this.
func (s *Service) MarkBookingAsOngoing(ctx context.Context, callerID, bookingID int64) (err error) {
	ctx, span := s.startOp(ctx, "booking_ongoing", callerID, attribute.Int64("clinic.booking_id", bookingID))
	defer func() { s.finishOp(span, "booking_ongoing", err) }()

	var sessionID int64
	err = s.store.InTx(ctx, func(tx Tx) error {
		booking, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		session, err := tx.GetSession(ctx, booking.SessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.ID != session.DoctorID {
			return ErrNotSessionOwner
		}
		sessionID = session.ID
		booking.OnGoing = true
		return tx.UpdateBookingStatus(ctx, booking)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, sessionID, "")
	return nil
}

// MarkBookingAsCompleted flags a booking as seen. The session's doctor or an
// admin may do this, and repeating it is harmless.
func (s *Service) MarkBookingAsCompleted(ctx context.Context, callerID, bookingID int64) (err error) {
	ctx, span := s.startOp(ctx, "booking_completed", callerID, attribute.Int64("clinic.booking_id", bookingID))
	defer func() { s.finishOp(span, "booking_completed", err) }()

	var sessionID int64
	err = s.store.InTx(ctx, func(tx Tx) error {
		booking, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		session, err := tx.GetSession(ctx, booking.SessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && actor.ID != session.DoctorID {
			return ErrNotBookingManager
		}
		sessionID = session.ID
		if booking.Completed {
			return nil
		}
		booking.Completed = true
		return tx.UpdateBookingStatus(ctx, booking)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, sessionID, "")
	return nil
}

// CreateBooking appends the calling patient to the end of a session's queue.
func (s *Service) CreateBooking(ctx context.Context, callerID, sessionID int64) (_ *Booking, err error) {
	ctx, span := s.startOp(ctx, "create_booking", callerID, attribute.Int64("clinic.session_id", sessionID))
	defer func() { s.finishOp(span, "create_booking", err) }()

	var created Booking
	err = s.store.InTx(ctx, func(tx Tx) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		actor, err := caller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if actor.Role != RolePatient {
			return ErrNotPatient
		}
		switch {
		case session.Canceled:
			return ErrSessionAlreadyCanceled
		case session.Completed:
			return ErrSessionCompleted
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		last := 0
		for _, b := range bookings {
			if b.PatientID == actor.ID {
				return ErrAlreadyBooked
			}
			if b.PositionInQueue > last {
				last = b.PositionInQueue
			}
		}
		if len(bookings) >= session.Capacity {
			return ErrSessionFull
		}
		created = Booking{
			SessionID:       sessionID,
			PatientID:       actor.ID,
			PositionInQueue: last + 1,
		}
		return tx.InsertBooking(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created", "session_id", sessionID, "booking_id", created.ID, "position", created.PositionInQueue)
	s.afterCommit(ctx, sessionID, "")
	return &created, nil
}
