package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-session-sync/internal/chat"
	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/internal/sessions"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// SnapshotLoader loads a session with its bookings and patients.
type SnapshotLoader interface {
	Project(ctx context.Context, sessionID int64) (*sessions.Snapshot, error)
}

// MessageDeliverer persists a doctor-to-patient message and pushes it.
type MessageDeliverer interface {
	Deliver(ctx context.Context, doctorID, patientID int64, text string) (*chat.Message, error)
}

// Leg outcomes recorded per recipient.
const (
	StatusDelivered  = "delivered"
	StatusPushFailed = "push_failed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// RecipientResult is the outcome of notifying one booked patient.
type RecipientResult struct {
	BookingID   int64
	PatientID   int64
	MessageID   int64
	ChatStatus  string
	EmailStatus string
	Err         error
}

// SessionNotifier tells booked patients that their session was cancelled or
// has started.
type SessionNotifier struct {
	loader  SnapshotLoader
	chat    MessageDeliverer
	email   EmailSender
	logger  *logging.Logger
	metrics *metrics.SessionMetrics

	emailTimeout time.Duration
}

// DefaultEmailTimeout bounds one recipient's email leg.
const DefaultEmailTimeout = 5 * time.Second

// NewSessionNotifier builds the notifier. email may be nil.
func NewSessionNotifier(loader SnapshotLoader, deliverer MessageDeliverer, email EmailSender, logger *logging.Logger, m *metrics.SessionMetrics) *SessionNotifier {
	if loader == nil || deliverer == nil {
		panic("notify: snapshot loader and deliverer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionNotifier{
		loader:       loader,
		chat:         deliverer,
		email:        email,
		logger:       logger,
		metrics:      m,
		emailTimeout: DefaultEmailTimeout,
	}
}

// SetEmailTimeout overrides DefaultEmailTimeout. Non-positive values are
// ignored.
func (n *SessionNotifier) SetEmailTimeout(d time.Duration) {
	if d > 0 {
		n.emailTimeout = d
	}
}

// NotifySessionStatus satisfies sessions.StatusNotifier. Only a failure to
// load the session is returned; per-recipient failures are logged.
func (n *SessionNotifier) NotifySessionStatus(ctx context.Context, sessionID int64, kind sessions.StatusKind) error {
	_, err := n.Notify(ctx, sessionID, kind)
	return err
}

// Notify sends the status message to every booked patient and reports each
// outcome. One patient's failure never stops the others.
func (n *SessionNotifier) Notify(ctx context.Context, sessionID int64, kind sessions.StatusKind) ([]RecipientResult, error) {
	snap, err := n.loader.Project(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("notify: load session %d: %w", sessionID, err)
	}
	if len(snap.Bookings) == 0 {
		return nil, nil
	}

	results := make([]RecipientResult, 0, len(snap.Bookings))
	for _, booking := range snap.Bookings {
		res := n.notifyOne(ctx, snap, booking, kind)
		if res.Err != nil {
			n.logger.Warn("session notification failed",
				"session_id", sessionID,
				"booking_id", booking.ID,
				"patient_id", booking.PatientID,
				"kind", string(kind),
				"chat_status", res.ChatStatus,
				"email_status", res.EmailStatus,
				"error", res.Err,
			)
		}
		results = append(results, res)
	}
	return results, nil
}

func (n *SessionNotifier) notifyOne(ctx context.Context, snap *sessions.Snapshot, booking sessions.BookingView, kind sessions.StatusKind) RecipientResult {
	res := RecipientResult{BookingID: booking.ID, PatientID: booking.PatientID, ChatStatus: StatusFailed, EmailStatus: StatusSkipped}
	notice, err := RenderNotice(snap, booking.Patient, kind)
	if err != nil {
		res.Err = err
		n.metrics.ObserveNotification("chat", res.ChatStatus)
		return res
	}

	msg, err := n.chat.Deliver(ctx, snap.DoctorID, booking.PatientID, notice.Text)
	switch {
	case msg == nil:
		res.ChatStatus = StatusFailed
	case err != nil:
		res.ChatStatus = StatusPushFailed
	default:
		res.ChatStatus = StatusDelivered
	}
	if msg != nil {
		res.MessageID = msg.ID
	}
	n.metrics.ObserveNotification("chat", res.ChatStatus)

	emailErr := n.sendEmail(ctx, booking.Patient, notice, &res)
	res.Err = errors.Join(err, emailErr)
	return res
}

func (n *SessionNotifier) sendEmail(ctx context.Context, patient sessions.Person, notice Notice, res *RecipientResult) error {
	if n.email == nil || strings.TrimSpace(patient.Email) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, n.emailTimeout)
	defer cancel()

	err := n.email.SendNotice(ctx, Recipient{
		Email: patient.Email,
		Name:  strings.TrimSpace(patient.FirstName + " " + patient.LastName),
	}, notice)
	res.EmailStatus = StatusDelivered
	if err != nil {
		res.EmailStatus = StatusFailed
	}
	n.metrics.ObserveNotification("email", res.EmailStatus)
	return err
}
