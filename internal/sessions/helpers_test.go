package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/internal/realtime"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

type publishedEvent struct {
	topic    realtime.Topic
	event    string
	snapshot *Snapshot
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic realtime.Topic, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, _ := payload.(*Snapshot)
	p.events = append(p.events, publishedEvent{topic: topic, event: event, snapshot: snap})
	return p.err
}

func (p *recordingPublisher) take() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

type notifyCall struct {
	sessionID int64
	kind      StatusKind
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) NotifySessionStatus(_ context.Context, sessionID int64, kind StatusKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{sessionID: sessionID, kind: kind})
	return nil
}

func (n *recordingNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type fixture struct {
	store    *MemoryStore
	pub      *recordingPublisher
	notifier *recordingNotifier
	svc      *Service
	proj     *Projector

	admin    User
	doctor   User
	doctor2  User
	patient  User
	patient2 User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	f := &fixture{
		store:    store,
		pub:      &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	f.admin = store.AddUser(User{FirstName: "Ada", LastName: "Admin", Email: "admin@clinic.test", Role: RoleAdmin})
	f.doctor = store.AddUser(User{FirstName: "Gregory", LastName: "House", Email: "house@clinic.test", ContactNumbers: []string{"+15550001"}, Role: RoleDoctor})
	f.doctor2 = store.AddUser(User{FirstName: "Lisa", LastName: "Cuddy", Email: "cuddy@clinic.test", Role: RoleDoctor})
	f.patient = store.AddUser(User{FirstName: "Pat", LastName: "One", Email: "pat1@clinic.test", Role: RolePatient})
	f.patient2 = store.AddUser(User{FirstName: "Sam", LastName: "Two", Email: "sam2@clinic.test", Role: RolePatient})

	logger := logging.New("error")
	m := metrics.NewSessionMetrics(prometheus.NewRegistry())
	f.proj = NewProjector(store, time.UTC)
	f.svc = NewService(store, NewDispatcher(f.proj, f.pub, logger, m), logger, m)
	f.svc.SetNotifier(f.notifier)
	return f
}

func sessionInput(doctorID int64) SessionInput {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return SessionInput{
		DoctorID:    doctorID,
		StartsAt:    start,
		EndsAt:      start.Add(2 * time.Hour),
		Capacity:    3,
		FeeCents:    5000,
		Description: "Morning clinic",
	}
}

// seedSession creates a session owned by doctorID and clears the broadcast log.
func (f *fixture) seedSession(t *testing.T, doctorID int64) *Session {
	t.Helper()
	s, err := f.svc.AddSession(context.Background(), f.admin.ID, sessionInput(doctorID))
	require.NoError(t, err)
	f.pub.take()
	return s
}

func (f *fixture) book(t *testing.T, sessionID, patientID int64) *Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), patientID, sessionID)
	require.NoError(t, err)
	f.pub.take()
	return b
}
